// Package events announces terminal order transitions to downstream
// consumers such as notification senders.
package events

import (
	"context"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Event types.
const (
	TypeOrderCompleted = "order.completed"
	TypeOrderFailed    = "order.failed"
)

// Event is the payload published for a terminal transition.
type Event struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId"`
	Email          string    `json:"email"`
	Status         string    `json:"status"`
	ResultLocation string    `json:"resultUrl,omitempty"`
	FailureReason  string    `json:"message,omitempty"`
	Manual         bool      `json:"manual,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers events. Callers treat errors as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// FromOrder builds the event for an order that reached a terminal status.
// ok is false for non-terminal orders.
func FromOrder(order domain.Order, manual bool) (Event, bool) {
	var typ string
	switch order.Status {
	case domain.OrderStatusCompleted:
		typ = TypeOrderCompleted
	case domain.OrderStatusFailed:
		typ = TypeOrderFailed
	default:
		return Event{}, false
	}
	return Event{
		Type:           typ,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Email:          order.Email,
		Status:         string(order.Status),
		ResultLocation: order.ResultLocation,
		FailureReason:  order.FailureReason,
		Manual:         manual,
		At:             order.UpdatedAt,
	}, true
}

// LogPublisher writes events to the log only.
type LogPublisher struct {
	logger *infra.Logger
}

func NewLogPublisher(logger *infra.Logger) *LogPublisher {
	return &LogPublisher{logger: infra.OrDiscard(logger)}
}

func (p *LogPublisher) Publish(ctx context.Context, evt Event) error {
	p.logger.Info().
		Str("event", evt.Type).
		Str("order_id", evt.OrderID).
		Str("status", evt.Status).
		Bool("manual", evt.Manual).
		Msg("events: order event")
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
