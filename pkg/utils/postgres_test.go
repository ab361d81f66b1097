package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresPoolDefaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 7}.withDefaults()
	if c.MaxOpenConns != 7 {
		t.Fatalf("explicit value must be kept, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns != 7 || c.ConnMaxLifetime != 30*time.Minute || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "", "", PostgresPoolConfig{}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "invoices_number_key"})
	if !IsUniqueViolation(err, "invoices_number_key") {
		t.Fatalf("expected unique violation on number")
	}
	if IsUniqueViolation(err, "ledger_entries_idempotency_key") {
		t.Fatalf("constraint name must match")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("empty constraint matches any unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatalf("plain error is not a unique violation")
	}
}

type recordingExecer struct {
	query string
	args  []any
}

func (r *recordingExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.query, r.args = query, args
	return nil, nil
}

func TestAdvisoryXactLock(t *testing.T) {
	var ex recordingExecer
	if err := AdvisoryXactLock(context.Background(), &ex, "billing:cust-1:2024-03"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(ex.args) != 1 || ex.args[0] != "billing:cust-1:2024-03" {
		t.Fatalf("unexpected args: %v", ex.args)
	}
	if err := AdvisoryXactLock(context.Background(), &ex, ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
