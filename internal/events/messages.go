// ABOUTME: Outbound transport message shapes and correlation tokens
// ABOUTME: Action, coffee-start event and reply envelope as published to the broker

package events

import (
	"strings"

	"github.com/google/uuid"
)

// Action asks a robot to perform an action.
type Action struct {
	Action  string `json:"action"`
	RobotID string `json:"robot_id"`
}

// CoffeeStart tells a robot to start the coffee routine.
type CoffeeStart struct {
	Event   string `json:"event"`
	Value   string `json:"value"`
	RobotID string `json:"robot_id"`
	TS      string `json:"ts"`
}

// Reply carries the answer to a transport-originated message.
type Reply struct {
	Type    string `json:"type"`
	ReplyTo string `json:"reply_to"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
}

// ReadyNotice is the body of the ready side-effect call.
type ReadyNotice struct {
	Event string `json:"event"`
	TS    int64  `json:"ts"`
}

// NewCoffeeStart builds a coffee-start event with a fresh token.
func NewCoffeeStart(robotID string) CoffeeStart {
	return CoffeeStart{Event: "coffee", Value: "start", RobotID: robotID, TS: NewToken()}
}

// NewReply builds a reply envelope with a fresh token.
func NewReply(replyTo, text string) Reply {
	return Reply{Type: "reply", ReplyTo: replyTo, Text: text, TS: NewToken()}
}

// NewToken returns an opaque unique correlation token. Tokens are not
// ordered.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
