// Package events builds and publishes outbound transport messages.
//
// Three shapes go to the broker:
//
//	{"action":"ready","robot_id":"wro1"}                              action topic
//	{"event":"coffee","value":"start","robot_id":"wro1","ts":"..."}  action topic, ready only
//	{"type":"reply","reply_to":"robot/notify","text":"...","ts":"..."} reply topic
//
// A ready action additionally POSTs {"event":"ready","ts":<unix>} to the
// configured hook URL. The hook and ledger writes run as detached jobs;
// their failures are logged and never retried.
package events
