// ABOUTME: Ordered intent matchers that classify user and model text into an action and response
// ABOUTME: Direct matchers run before the model call, post-model matchers after; first match wins

package intent

import (
	"strings"

	"github.com/2389/barista-gateway/internal/inbound"
)

// Actions recognized by the gateway.
const (
	ActionReady         = "ready"
	ActionBrewAmericano = "brew_americano"
)

// Canned replies.
const (
	JudgesGreeting    = "Hello judges! I am Xiao Ka, please wave! We are ready to move to the next stage!"
	ProximityGreeting = "Hello there! I am Xiao Ka, nice to meet you! What's your name?"
	Apology           = "Sorry, I am currently unable to properly process your request. Please try again."
)

// ReadyKeywords trigger the ready action when found in the user's text.
var ReadyKeywords = []string{"準備好了", "準備", "開始", "ready", "start"}

// Result is a classified turn. Action is empty when no action applies.
type Result struct {
	Action string
	Text   string
}

// Input is what a matcher sees. ModelText is empty for direct matchers.
type Input struct {
	UserText  string
	ModelText string
	// Message is set for transport-originated turns.
	Message *inbound.Message
}

// Matcher classifies an input or declines it.
type Matcher interface {
	Name() string
	Match(in Input) (Result, bool)
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc struct {
	Label string
	Fn    func(in Input) (Result, bool)
}

// Name returns the matcher label.
func (m MatcherFunc) Name() string { return m.Label }

// Match calls the wrapped function.
func (m MatcherFunc) Match(in Input) (Result, bool) { return m.Fn(in) }

// Bypass answers "hello judges" with a canned greeting, skipping the model.
func Bypass() Matcher {
	return MatcherFunc{Label: "bypass", Fn: func(in Input) (Result, bool) {
		if strings.Contains(strings.ToLower(in.UserText), "hello judges") {
			return Result{Text: JudgesGreeting}, true
		}
		return Result{}, false
	}}
}

// Proximity greets someone who walked up to the robot.
func Proximity() Matcher {
	return MatcherFunc{Label: "proximity", Fn: func(in Input) (Result, bool) {
		if in.Message != nil && in.Message.Proximity() {
			return Result{Text: ProximityGreeting}, true
		}
		return Result{}, false
	}}
}

// Ready classifies the turn as ready when the user's text contains a ready
// keyword, whatever the model said. Matching is by substring.
func Ready() Matcher {
	return MatcherFunc{Label: "ready", Fn: func(in Input) (Result, bool) {
		lower := strings.ToLower(in.UserText)
		for _, kw := range ReadyKeywords {
			if strings.Contains(lower, kw) || strings.Contains(in.UserText, kw) {
				return Result{Action: ActionReady, Text: in.ModelText}, true
			}
		}
		return Result{}, false
	}}
}

// Legacy parses the tagged grammar PREFIX:label|text from model output.
// Unrecognized labels decline so the text falls through as plain.
func Legacy() Matcher {
	return MatcherFunc{Label: "legacy", Fn: func(in Input) (Result, bool) {
		action, text, ok := ParseTagged(in.ModelText)
		if !ok {
			return Result{}, false
		}
		return Result{Action: action, Text: text}, true
	}}
}

// Plain accepts any model text as-is with no action.
func Plain() Matcher {
	return MatcherFunc{Label: "plain", Fn: func(in Input) (Result, bool) {
		return Result{Text: in.ModelText}, true
	}}
}

var taggedPrefixes = []string{"ACTION:", "event:"}

var recognizedLabels = map[string]bool{
	ActionReady:         true,
	ActionBrewAmericano: true,
}

// ParseTagged extracts a recognized action and its response text from
// "ACTION:label|text" or "event:label|text". The response falls back to
// the full input when nothing follows the bar.
func ParseTagged(s string) (action, text string, ok bool) {
	tagged := false
	for _, p := range taggedPrefixes {
		if strings.HasPrefix(s, p) {
			tagged = true
			break
		}
	}
	if !tagged {
		return "", "", false
	}

	head, rest, _ := strings.Cut(s, "|")
	_, label, _ := strings.Cut(head, ":")
	label = strings.TrimSpace(label)
	if !recognizedLabels[label] {
		return "", "", false
	}

	text = strings.TrimSpace(rest)
	if text == "" {
		text = s
	}
	return label, text, true
}
