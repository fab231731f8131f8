package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"studio/internal/domain"
)

// MemoryStore keeps orders in a map guarded by one RWMutex. Orders are stored
// by value, so Get hands out snapshots that later writes cannot touch.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: map[string]domain.Order{}}
}

func (s *MemoryStore) Create(ctx context.Context, order domain.Order) error {
	if order.ID == "" {
		return fmt.Errorf("orders: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("orders: duplicate id %q", order.ID)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (s *MemoryStore) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, order := range s.orders {
		if order.UserID == userID && !order.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id string, t domain.Transition) (domain.Order, error) {
	if !domain.CanTransition(t.From, t.To) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.From, t.To)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if order.Status != t.From {
		return order, fmt.Errorf("%w: order is %s, not %s", domain.ErrInvalidTransition, order.Status, t.From)
	}
	order = t.Apply(order)
	s.orders[id] = order
	return order, nil
}

func (s *MemoryStore) ForceComplete(ctx context.Context, id, location string, at time.Time) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	order = domain.Transition{To: domain.OrderStatusCompleted, ResultLocation: location, At: at}.Apply(order)
	s.orders[id] = order
	return order, nil
}

func (s *MemoryStore) StalePending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	pending := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.Status == domain.OrderStatusPending && order.CreatedAt.Before(before) {
			pending = append(pending, order)
		}
	}
	s.mu.RUnlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	ids := make([]string, len(pending))
	for i, order := range pending {
		ids[i] = order.ID
	}
	return ids, nil
}

var _ Store = (*MemoryStore)(nil)
