// Package inbound turns raw transport payloads into Messages.
//
// Parsing is best-effort. A payload that is not a JSON object is treated as
// the user's text, and an object without any known text field falls back to
// the raw payload, so every payload yields a non-empty Text.
package inbound
