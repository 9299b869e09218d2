// Package model wraps the hosted chat-model APIs behind a single Completer.
//
// Both adapters receive the full bounded conversation, system prompt
// included, and return trimmed assistant text. A configured timeout bounds
// each completion on top of the caller's context.
package model
