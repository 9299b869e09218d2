// Package gateway wires the barista-gateway components together and serves
// the HTTP and WebSocket surfaces.
//
// # Ownership
//
// A single scheduler goroutine owns the session registry and the shared
// transport history. Everything else reaches that state by submitting tasks:
//
//   - MQTT callbacks parse the payload and Submit HandleTransportMessage.
//   - WebSocket readers Submit HandleSessionInput and wait for the turn to
//     finish before reading the next frame.
//   - HTTP handlers use Do to read or change state synchronously.
//
// Model calls and speech synthesis run on the scheduler's bounded worker
// pool and hand their results back with scheduler.Await.
//
// # Turns
//
// Every utterance becomes a turn that moves through
//
//	RECEIVED -> {DIRECT_REPLY | MODEL_CALL} -> ACTION_CLASSIFIED ->
//	[SIDE_EFFECT_DISPATCH] -> REPLY_DELIVERY -> [SPEECH_SCHEDULE] -> DONE
//
// Each transition is logged at debug level with the turn token. A failed
// model call skips classification and replies with a fixed apology.
//
// Transport turns use the shared history, are routed by robot_id and publish
// a reply envelope to the reply topic. Interactive turns use the session's
// own history and answer on the socket only.
//
// # HTTP API
//
//   - GET / - service descriptor
//   - GET /health - status, broker connection, default robot
//   - GET /robot, POST /robot - default robot and session assignments
//   - GET /mqtt/broker, POST /mqtt/broker - current broker, reconnect
//   - POST /mqtt/test - wait for a connection and publish a probe
//   - POST /test/distance - synthesize a proximity event
//   - POST /test-say - broadcast a model answer or publish an action
//   - POST /test/language - language detection report
//   - GET /events, GET /events/{id} - transport event ledger
//   - GET /ws - interactive session WebSocket
package gateway
