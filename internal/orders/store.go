// Package orders holds the system of record for orders.
package orders

import (
	"context"
	"time"

	"studio/internal/domain"
)

// Store persists orders. Every status change goes through Transition or
// ForceComplete, each of which is a single atomic update: a concurrent
// reader sees the record either entirely before or entirely after it.
type Store interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// CountCreatedSince counts the user's orders with CreatedAt >= since.
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error)
	// Transition applies t when the stored status equals t.From. It returns
	// domain.ErrNotFound for unknown ids and domain.ErrInvalidTransition when
	// the status moved on or t is not a lifecycle step.
	Transition(ctx context.Context, id string, t domain.Transition) (domain.Order, error)
	// ForceComplete marks the order completed regardless of its status.
	ForceComplete(ctx context.Context, id, location string, at time.Time) (domain.Order, error)
	// StalePending lists ids of orders still pending that were created before.
	StalePending(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// StartOfUTCDay truncates t to midnight of its UTC calendar date.
func StartOfUTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
