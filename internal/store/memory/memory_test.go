package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement-platform/internal/pricing"
	"settlement-platform/internal/store"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg := pricing.Default(time.Now())
		cfg.ID = "cfg-1"
		if err := tx.InsertConfiguration(ctx, cfg); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, ok, _ := tx.GetConfiguration(ctx, "cfg-1"); ok {
			t.Fatalf("expected insert to be rolled back")
		}
		return nil
	})
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg := pricing.Default(time.Now())
		cfg.ID = "cfg-1"
		return tx.InsertConfiguration(ctx, cfg)
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_ = s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, ok, _ := tx.GetConfiguration(ctx, "cfg-1"); !ok {
			t.Fatalf("expected committed configuration")
		}
		return nil
	})
}

func TestRead_DiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg := pricing.Default(time.Now())
		cfg.ID = "cfg-1"
		return tx.InsertConfiguration(ctx, cfg)
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	_ = s.Read(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, ok, _ := tx.GetConfiguration(ctx, "cfg-1"); ok {
			t.Fatalf("expected write inside Read to be discarded")
		}
		return nil
	})
}
