// Package transport connects the gateway to the MQTT broker.
//
// The paho client runs its network loop and callbacks on its own
// goroutines. The Bridge never lets those goroutines touch gateway state:
// each inbound message is parsed and handed to the scheduler with Submit.
// When the scheduler is not running the message is dropped and logged.
//
// Subscriptions are issued from the connect handler, so every successful
// connect (including paho's automatic reconnects and explicit Reconnect
// calls) re-subscribes the configured notify topics.
package transport
