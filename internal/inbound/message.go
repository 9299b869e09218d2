// ABOUTME: Best-effort parsing of inbound transport payloads into a Message
// ABOUTME: Malformed or non-object JSON degrades to raw-text interpretation and is never rejected

package inbound

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EmptyText stands in for a payload that yields no usable text.
const EmptyText = "(empty message)"

// ProximityThreshold is the distance in centimetres below which a start
// event counts as someone approaching the robot.
const ProximityThreshold = 10

// Message is one inbound transport message with its parsed fields.
type Message struct {
	Topic string
	Raw   string

	// ID is the optional producer-assigned message id used for redelivery checks.
	ID string

	Event  string
	Action string

	// RobotID is only meaningful when HasRobot is true. An empty string
	// still targets a robot.
	RobotID  string
	HasRobot bool

	// Distance is nil when the payload carries no usable distance.
	Distance *int

	// Text is the user utterance derived from the payload, never empty.
	Text string
}

// Proximity reports whether the message is a start event closer than the
// proximity threshold.
func (m Message) Proximity() bool {
	return m.Event == "start" && m.Distance != nil && *m.Distance < ProximityThreshold
}

// Parse interprets a payload. Fields are probed in order: robot_id, then
// distance or distance_cm, then action, then text, message or content, and
// finally the raw payload itself.
func Parse(topic string, payload []byte) Message {
	raw := strings.ToValidUTF8(string(payload), "")
	msg := Message{Topic: topic, Raw: raw}

	text := raw
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		text = msg.fromObject(obj, raw)
	}

	msg.Text = strings.TrimSpace(text)
	if msg.Text == "" {
		msg.Text = EmptyText
	}
	return msg
}

// fromObject fills parsed fields from a decoded JSON object and returns the
// derived utterance.
func (m *Message) fromObject(obj map[string]any, raw string) string {
	if v, ok := obj["robot_id"]; ok && v != nil {
		m.HasRobot = true
		m.RobotID = stringify(v)
	}
	if v, ok := obj["id"]; ok && v != nil {
		m.ID = stringify(v)
	}
	if v, ok := obj["event"].(string); ok {
		m.Event = v
	}

	if v, ok := obj["distance"]; ok && v != nil {
		m.Distance = toInt(v)
	} else if v, ok := obj["distance_cm"]; ok && v != nil {
		m.Distance = toInt(v)
	}

	if m.Proximity() {
		return fmt.Sprintf("Distance sensor triggered: %dcm, less than %dcm, start interacting with user", *m.Distance, ProximityThreshold)
	}

	if v, ok := obj["action"]; ok && truthy(v) {
		m.Action = stringify(v)
		return m.Action
	}

	for _, key := range []string{"text", "message", "content"} {
		if v, ok := obj[key]; ok && truthy(v) {
			return stringify(v)
		}
	}
	return raw
}

// stringify renders a JSON value the way a user would type it.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// toInt converts a JSON number or numeric string to an int, truncating
// fractions. Anything else yields nil.
func toInt(v any) *int {
	switch val := v.(type) {
	case float64:
		n := int(val)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return &n
	case bool:
		n := 0
		if val {
			n = 1
		}
		return &n
	}
	return nil
}

// truthy mirrors JSON-ish truthiness: empty strings, zero, false, empty
// containers and null are all false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case float64:
		return val != 0
	case bool:
		return val
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	return true
}
