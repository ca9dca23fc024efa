package repo

import (
	"context"
	"encoding/json"
	"time"

	"productsnap/internal/domain"
	"productsnap/internal/infra"
	"productsnap/internal/sqlinline"
)

// AuditRepositoryPG appends audit_logs rows.
type AuditRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewAuditRepository(sql infra.SQLExecutor) *AuditRepositoryPG {
	return &AuditRepositoryPG{sql: sql}
}

func (r *AuditRepositoryPG) Record(ctx context.Context, entry domain.AuditEntry) error {
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertAuditLog,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.IPAddress,
		entry.Country,
		entry.UserAgent,
		string(raw),
		createdAt,
	)
	return err
}

var _ domain.AuditRepository = (*AuditRepositoryPG)(nil)
