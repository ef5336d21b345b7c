// Package events fans place and link notifications out to every transport
// the server exposes (WebSocket, SSE, Kafka) through one broker.
package events

import "time"

// EventType names a notification.
type EventType string

// Event types.
const (
	// PlaceCreated fires when an unmatched record becomes a new catalog place.
	PlaceCreated EventType = "place.created"
	// LinkCreated fires when a place gains a layer link.
	LinkCreated EventType = "link.created"
	// LinkUpdated fires when a link's external ID or layer data changed.
	LinkUpdated EventType = "link.updated"
	// LinkTouched fires when an unchanged link was re-observed.
	LinkTouched EventType = "link.touched"

	// ClientConnected is sent by transports to a newly connected client.
	ClientConnected EventType = "client.connected"
)

// Event is the unit delivered to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
