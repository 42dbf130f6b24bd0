// Package protocol defines constants used across the protocol.
package protocol

import "time"

const (
	// DefaultPingInterval is how often the server pings an idle connection.
	DefaultPingInterval = 25 * time.Second

	// DefaultPingTimeout is how long a connection may stay silent before
	// the server drops it.
	DefaultPingTimeout = 60 * time.Second

	// SystemUserID marks events and operations the server itself
	// authored, rather than a connected client.
	SystemUserID = "system"
)
