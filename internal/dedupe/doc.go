// Package dedupe drops broker redeliveries of inbound transport messages.
//
// Producers may tag a payload with an "id". The gateway asks the Cache
// whether (topic, id) was already handled within the TTL window; payloads
// without an id are always processed.
package dedupe
