package postgres

import (
	"context"

	"settlement-platform/internal/audit"
)

func (t *tx) AppendAuditEvent(ctx context.Context, e audit.Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_id, actor_role, ip_address, target_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := t.tx.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ActorID,
		e.ActorRole,
		e.IPAddress,
		e.TargetID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
