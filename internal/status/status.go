// Package status serves the read-only order projection clients poll.
package status

import (
	"context"

	"studio/internal/domain"
	"studio/internal/orders"
)

// View is what a client sees of an order. ResultLocation is set only when
// completed and FailureReason only when failed.
type View struct {
	OrderID        string
	Status         domain.OrderStatus
	ResultLocation string
	FailureReason  string
}

// Service reads order snapshots from the store. It never mutates them.
type Service struct {
	store orders.Store
}

func NewService(store orders.Store) *Service {
	return &Service{store: store}
}

// StatusOf returns the current view of orderID or domain.ErrNotFound.
func (s *Service) StatusOf(ctx context.Context, orderID string) (View, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return View{}, err
	}
	view := View{OrderID: order.ID, Status: order.Status}
	switch order.Status {
	case domain.OrderStatusCompleted:
		view.ResultLocation = order.ResultLocation
	case domain.OrderStatusFailed:
		view.FailureReason = order.FailureReason
	}
	return view, nil
}
