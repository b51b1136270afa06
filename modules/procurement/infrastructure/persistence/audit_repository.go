package persistence

import (
	"context"

	"github.com/InfradynAB/procure-sdk/modules/procurement/services"
	"github.com/InfradynAB/procure-sdk/pkg/composables"
)

type AuditRepository struct{}

func NewAuditRepository() services.AuditRecorder {
	return &AuditRepository{}
}

// Record writes the audit row inside the caller's transaction so an entry
// exists exactly when the mutation it describes committed.
func (r *AuditRepository) Record(ctx context.Context, entry services.AuditLogInsert) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	metadata, err := entry.MarshalMetadata()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO audit_logs (tenant_id, actor_id, action, entity_type, entity_id, metadata, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7)`,
		pgUUID(tenantID),
		pgUUID(entry.ActorID),
		entry.Action,
		entry.EntityType,
		pgUUID(entry.EntityID),
		metadata,
		entry.At,
	)
	return err
}
