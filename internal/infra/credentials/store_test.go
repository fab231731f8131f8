package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studio/internal/sqlinline"
)

type stubExecutor struct {
	token   string
	err     error
	queries int
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries++
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " rd-123 "})
	key, err := store.Token(context.Background(), ProviderRunDiffusion)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "rd-123" {
		t.Fatalf("expected rd-123, got %q", key)
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderHuggingFace)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestResolvePrefersConfigured(t *testing.T) {
	exec := &stubExecutor{token: "from-db"}
	store := NewStore(exec)

	key, err := store.Resolve(context.Background(), ProviderRunDiffusion, " from-env ")
	if err != nil || key != "from-env" {
		t.Fatalf("Resolve = %q, %v; want from-env", key, err)
	}
	if exec.queries != 0 {
		t.Fatalf("Resolve queried the database with a configured value")
	}
	key, err = store.Resolve(context.Background(), ProviderRunDiffusion, "")
	if err != nil || key != "from-db" {
		t.Fatalf("Resolve = %q, %v; want from-db", key, err)
	}

	var nilStore *Store
	if key, err := nilStore.Resolve(context.Background(), ProviderHuggingFace, ""); key != "" || err != nil {
		t.Fatalf("nil store Resolve = %q, %v", key, err)
	}
}

func TestSetToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.SetToken(context.Background(), ProviderHuggingFace, "secret"); err != nil {
		t.Fatalf("SetToken error: %v", err)
	}
	if exec.exec.query != sqlinline.QUpsertIntegrationToken {
		t.Fatalf("SetToken ran an unexpected query")
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestSetTokenValidation(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.SetToken(context.Background(), ProviderRunDiffusion, " "); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := store.SetToken(context.Background(), "gemini", "x"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestDeleteToken(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.DeleteToken(context.Background(), ProviderRunDiffusion); err != nil {
		t.Fatalf("DeleteToken error: %v", err)
	}
	if exec.exec.query != sqlinline.QDeleteIntegrationToken || exec.exec.args[0] != ProviderRunDiffusion {
		t.Fatalf("DeleteToken exec = %+v", exec.exec)
	}
}
