package audit

import (
	"context"
	"errors"
	"testing"
)

func TestService_AppendRequiresActorAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypePricingActivated}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ActorID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ActorID: "u", Type: "call_rated"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown type, got %v", err)
	}
	if err := NewService(nil).Append(context.Background(), Event{ActorID: "u", Type: EventTypeSweepTriggered}); !errors.Is(err, ErrRepoNotConfigured) {
		t.Fatalf("expected ErrRepoNotConfigured, got %v", err)
	}
}

func TestService_LogCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	actor := Actor{ID: "admin-1", Role: "admin", IP: "1.2.3.4"}
	if err := svc.Log(context.Background(), actor, EventTypeInvoiceCancelled, "inv-1", "duplicate", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].TargetID != "inv-1" {
		t.Fatalf("expected target captured")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned")
	}
}

func TestMemoryRepo_RejectsRewriteAndFiltersByType(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first := Event{ID: "ev-1", Type: EventTypeSweepTriggered, ActorID: "cli:ops"}
	if err := repo.AppendAuditEvent(ctx, first); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	rewrite := first
	rewrite.Message = "edited"
	if err := repo.AppendAuditEvent(ctx, rewrite); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
	if err := repo.AppendAuditEvent(ctx, Event{ID: "ev-2", Type: EventTypePeriodClosed, ActorID: "cli:ops"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	clone := repo.Clone()
	if err := clone.AppendAuditEvent(ctx, Event{ID: "ev-3", Type: EventTypePeriodClosed}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n := len(repo.Events()); n != 2 {
		t.Fatalf("expected clone writes to stay out of the original, got %d events", n)
	}

	closed := clone.Events(EventTypePeriodClosed)
	if len(closed) != 2 || closed[0].ID != "ev-2" || closed[1].ID != "ev-3" {
		t.Fatalf("expected period_closed events in append order, got %+v", closed)
	}
	if evs := repo.Events(); evs[0].Message != "" {
		t.Fatalf("expected first event unchanged, got %q", evs[0].Message)
	}
}
