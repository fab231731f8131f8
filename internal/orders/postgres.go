package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// PostgresStore persists orders in the orders table. Transitions are single
// conditional UPDATE statements, so the row is never observed half-written.
type PostgresStore struct {
	sql infra.SQLExecutor
}

func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

func (s *PostgresStore) Create(ctx context.Context, order domain.Order) error {
	_, err := s.sql.Exec(ctx, sqlinline.QInsertOrder,
		order.ID,
		order.UserID,
		order.Email,
		order.Plan,
		order.Prompt,
		order.Duration,
		order.VoiceText,
		order.WatermarkRequired,
		order.Country,
		order.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("orders: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if !validID(id) {
		return domain.Order{}, domain.ErrNotFound
	}
	order, err := scanOrder(s.sql.QueryRow(ctx, sqlinline.QSelectOrderByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("orders: select: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	if err := s.sql.QueryRow(ctx, sqlinline.QCountOrdersSince, userID, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("orders: count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Transition(ctx context.Context, id string, t domain.Transition) (domain.Order, error) {
	if !domain.CanTransition(t.From, t.To) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.From, t.To)
	}
	if !validID(id) {
		return domain.Order{}, domain.ErrNotFound
	}
	row := s.sql.QueryRow(ctx, sqlinline.QTransitionOrder,
		id,
		string(t.From),
		string(t.To),
		t.ResultLocation,
		t.FailureReason,
		t.At.UTC(),
	)
	order, err := scanOrder(row)
	if err == nil {
		return order, nil
	}
	if !infra.IsNoRows(err) {
		return domain.Order{}, fmt.Errorf("orders: transition: %w", err)
	}
	// Nothing updated: either the id is unknown or the status moved on.
	exists, existsErr := s.exists(ctx, id)
	if existsErr != nil {
		return domain.Order{}, existsErr
	}
	if !exists {
		return domain.Order{}, domain.ErrNotFound
	}
	return domain.Order{}, fmt.Errorf("%w: order is no longer %s", domain.ErrInvalidTransition, t.From)
}

func (s *PostgresStore) ForceComplete(ctx context.Context, id, location string, at time.Time) (domain.Order, error) {
	if !validID(id) {
		return domain.Order{}, domain.ErrNotFound
	}
	order, err := scanOrder(s.sql.QueryRow(ctx, sqlinline.QForceCompleteOrder, id, location, at.UTC()))
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("orders: force complete: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) StalePending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectStalePendingOrderIDs, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("orders: stale pending: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("orders: scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.sql.QueryRow(ctx, sqlinline.QOrderExists, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("orders: exists: %w", err)
	}
	return exists, nil
}

// validID filters ids the uuid column could never hold, so lookups of
// arbitrary client input report not found instead of a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Email,
		&order.Plan,
		&order.Prompt,
		&order.Duration,
		&order.VoiceText,
		&order.WatermarkRequired,
		&order.Country,
		&status,
		&order.ResultLocation,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.StartedAt,
		&order.CompletedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

var _ Store = (*PostgresStore)(nil)
