package domain

import "time"

// Connection is a handle to one client push session. Presence in the
// registry only means the transport considered the session live when it was
// registered.
type Connection struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
