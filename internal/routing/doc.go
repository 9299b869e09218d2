// Package routing decides which interactive sessions an inbound transport
// message is delivered to, keyed by robot identifier.
package routing
