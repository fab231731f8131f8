package orders

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studio/internal/domain"
	"studio/internal/sqlinline"
)

type stubExecutor struct {
	rows    map[string]stubRow
	queries []string
	args    [][]any
}

func (s *stubExecutor) record(query string, args []any) {
	s.queries = append(s.queries, query)
	s.args = append(s.args, args)
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.record(query, args)
	return pgconn.CommandTag{}, s.rows[query].err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.record(query, args)
	row, ok := s.rows[query]
	if !ok {
		return stubRow{err: errors.New("unexpected query")}
	}
	return row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.record(query, args)
	return nil, errors.New("not implemented")
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

const testOrderID = "5c1f0d3a-8a43-4a4a-9e44-3c4c2f9d5b10"

func orderRow(status string, location, reason string) stubRow {
	created := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	var started, completed *time.Time
	if status != "pending" {
		started = &created
	}
	if status == "completed" || status == "failed" {
		completed = &created
	}
	return stubRow{values: []any{
		testOrderID, "u-1", "u-1@example.com", "pro", "a lighthouse", 6, "", false, "ID",
		status, location, reason, created, created, started, completed,
	}}
}

func TestPostgresStoreGet(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QSelectOrderByID: orderRow("completed", "https://cdn/o.mp4", ""),
	}}
	store := NewPostgresStore(exec)

	order, err := store.Get(context.Background(), testOrderID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted || order.ResultLocation != "https://cdn/o.mp4" {
		t.Fatalf("Get returned %+v", order)
	}
	if order.CompletedAt == nil {
		t.Fatalf("CompletedAt not scanned")
	}
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QSelectOrderByID: {err: pgx.ErrNoRows},
	}}
	store := NewPostgresStore(exec)

	if _, err := store.Get(context.Background(), testOrderID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(not-a-uuid) error = %v, want ErrNotFound", err)
	}
	if len(exec.queries) != 1 {
		t.Fatalf("queries issued = %d, want 1 (malformed id must not reach the database)", len(exec.queries))
	}
}

func TestPostgresStoreTransitionPassesCompareArgs(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QTransitionOrder: orderRow("processing", "", ""),
	}}
	store := NewPostgresStore(exec)
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	order, err := store.Transition(context.Background(), testOrderID, domain.Transition{
		From: domain.OrderStatusPending,
		To:   domain.OrderStatusProcessing,
		At:   at,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", order.Status)
	}
	args := exec.args[0]
	if args[1] != "pending" || args[2] != "processing" {
		t.Fatalf("transition args = %v", args)
	}
}

func TestPostgresStoreTransitionLostRace(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QTransitionOrder: {err: pgx.ErrNoRows},
		sqlinline.QOrderExists:     {values: []any{true}},
	}}
	store := NewPostgresStore(exec)

	_, err := store.Transition(context.Background(), testOrderID, domain.Transition{
		From: domain.OrderStatusPending,
		To:   domain.OrderStatusProcessing,
		At:   time.Now(),
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Transition error = %v, want ErrInvalidTransition", err)
	}
}

func TestPostgresStoreTransitionUnknownOrder(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QTransitionOrder: {err: pgx.ErrNoRows},
		sqlinline.QOrderExists:     {values: []any{false}},
	}}
	store := NewPostgresStore(exec)

	_, err := store.Transition(context.Background(), testOrderID, domain.Transition{
		From: domain.OrderStatusProcessing,
		To:   domain.OrderStatusFailed,
		At:   time.Now(),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Transition error = %v, want ErrNotFound", err)
	}
}

func TestPostgresStoreRejectsIllegalTransitionWithoutQuery(t *testing.T) {
	exec := &stubExecutor{}
	store := NewPostgresStore(exec)

	_, err := store.Transition(context.Background(), testOrderID, domain.Transition{
		From: domain.OrderStatusCompleted,
		To:   domain.OrderStatusPending,
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("Transition error = %v, want ErrInvalidTransition", err)
	}
	if len(exec.queries) != 0 {
		t.Fatalf("queries issued = %d, want 0", len(exec.queries))
	}
}

func TestPostgresStoreCountCreatedSince(t *testing.T) {
	exec := &stubExecutor{rows: map[string]stubRow{
		sqlinline.QCountOrdersSince: {values: []any{3}},
	}}
	store := NewPostgresStore(exec)
	since := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	count, err := store.CountCreatedSince(context.Background(), "u-1", since)
	if err != nil {
		t.Fatalf("CountCreatedSince error: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if got := exec.args[0][1].(time.Time); !got.Equal(since) {
		t.Fatalf("since arg = %s, want %s", got, since)
	}
}
