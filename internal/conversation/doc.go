// Package conversation holds bounded conversational state.
//
// # Overview
//
// A History is an ordered list of turns (system, user, assistant). Its first
// turn is the seed, normally the system prompt, and it is never trimmed away:
//
//	h := conversation.NewWithSystem(prompt, conversation.DefaultLimit)
//	h.Append(conversation.RoleUser, "hello")
//
// After every Append the history holds at most Limit turns: the seed plus
// the most recent Limit-1 turns. Trim is idempotent.
//
// # Ownership
//
// Each interactive session owns one History and the gateway owns a shared
// History for transport-originated exchanges. Histories are not locked; the
// session runtime is their only writer. Work that leaves the runtime, such as
// a model call, receives a Snapshot copy.
package conversation
