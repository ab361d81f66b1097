package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEvent      = errors.New("audit: invalid event")
	ErrRepoNotConfigured = errors.New("audit: repository not configured")
)

// Repository appends operator events. There is no update or delete.
type Repository interface {
	AppendAuditEvent(ctx context.Context, e Event) error
}

// Service records who changed pricing, invoices, ledger entries and package usage.
// The trail is for operators only and is never returned on customer-facing routes.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return ErrRepoNotConfigured
	}
	if !e.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.ActorID == "" {
		return fmt.Errorf("%w: actor required", ErrInvalidEvent)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.AppendAuditEvent(ctx, e)
}

// Log records actor performing typ on targetID.
func (s *Service) Log(ctx context.Context, actor Actor, typ EventType, targetID, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:      typ,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		IPAddress: actor.IP,
		TargetID:  targetID,
		Message:   message,
		Metadata:  metadata,
	})
}
