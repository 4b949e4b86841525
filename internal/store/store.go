package store

import (
	"context"
	"time"
)

// Room is a registered chat room. The id is server-assigned and opaque to
// clients.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Store persists the room registry.
type Store interface {
	// CreateRoom registers a room under a fresh id.
	CreateRoom(ctx context.Context, name string) (*Room, error)
	// GetRoom returns the room, or (nil, nil) when the id is unknown.
	GetRoom(ctx context.Context, id string) (*Room, error)
	// Close releases the underlying storage.
	Close() error
}
