// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/line-handoff/internal/domain"
)

// ErrNotFound is returned when an operation requires an existing session
// and none is stored for the given user ID.
var ErrNotFound = errors.New("session not found")

// Repository defines the interface for persisting user hand-off sessions.
//
// Hand-off state is safety critical, so there is deliberately no in-process
// caching layer in front of these operations: every call is a fresh read or
// a durable write against the backing store.
type Repository interface {
	// UpsertSession creates a session with BotHandled=true on first contact,
	// or refreshes LastMessagedAt on an existing one. The existing BotHandled
	// value is always preserved — upsert must never flip hand-off mode.
	UpsertSession(ctx context.Context, userID string) (*domain.UserSession, error)

	// GetSession retrieves a session by user ID. Returns nil, nil if absent.
	GetSession(ctx context.Context, userID string) (*domain.UserSession, error)

	// SetBotHandled updates the hand-off flag. Idempotent; returns ErrNotFound
	// if no session exists for the user.
	SetBotHandled(ctx context.Context, userID string, botHandled bool) error

	// ListAgentHandled returns all sessions currently pinned to a human agent
	// (BotHandled == false), for the inactivity sweep.
	ListAgentHandled(ctx context.Context) ([]*domain.UserSession, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
