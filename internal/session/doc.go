// Package session manages live interactive sessions.
//
// A Session is one WebSocket connection: its robot assignment, its own
// conversation history and a buffered outbox of frames. The Registry opens
// and closes sessions and answers "which sessions care about robot X":
//
//	s := reg.Open()                 // assigned to the default robot
//	reg.SetRobot(s.ID, "wro7")
//	targets := reg.SessionsForRobot("wro7")
//	reg.Close(s.ID)
//
// The Registry is owned by the scheduler goroutine and has no lock.
package session
