// Package config handles configuration loading for barista-gateway.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every field has a default, so an empty file is a valid config.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from BARISTA_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/barista/gateway.yaml
//  3. ~/.config/barista/gateway.yaml
//
// Files with a .toml extension are decoded as TOML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	model:
//	  api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	mqtt:
//	  keepalive: "60s"
//
// # Configuration Sections
//
// Transport:
//
//	mqtt:
//	  broker: "broker.emqx.io"
//	  port: 1883                 # 8883 implies TLS
//	  username: "${MQTT_USERNAME}"
//	  password: "${MQTT_PASSWORD}"
//	  action_topic: "robot/events"
//	  reply_topic: "robot/reply"
//	  notify_topics: ["robot/notify"]
//
// Routing:
//
//	robots:
//	  default_id: "wro1"
//	routing:
//	  publish_unmatched: true
//
// Collaborators:
//
//	model:
//	  provider: "openai"         # openai, anthropic
//	  name: "gpt-4.1-nano"
//	  timeout: "30s"
//	speech:
//	  enabled: true
//	  url: "http://localhost:5002/tts"
//	ready_hook:
//	  url: "${OCR_POST_URL}"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
