package sharing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/datatypes"
)

// Audit actions, one per mutating operation.
const (
	AuditGenerateKey   = "generate_key"
	AuditReuseKey      = "reuse_key"
	AuditJoinByKey     = "join_by_key"
	AuditInviteUser    = "invite_user"
	AuditModifyRole    = "modify_role"
	AuditRevokeAccess  = "revoke_access"
	AuditLeave         = "leave"
	AuditUnshare       = "unshare"
	AuditCascadeGrants = "cascade_grants"
)

// AuditEntry is an immutable record of one sharing action. Rows are only
// ever appended; they are never updated or deleted.
type AuditEntry struct {
	ID           int64          `gorm:"primaryKey" json:"id"`
	ResourceType ResourceType   `gorm:"index:idx_audit_resource;not null" json:"resource_type"`
	ResourceID   int64          `gorm:"index:idx_audit_resource;not null" json:"resource_id"`
	ActorID      int64          `gorm:"not null" json:"actor_id"`
	Action       string         `gorm:"not null" json:"action"`
	Details      datatypes.JSON `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// auditDetails marshals a details payload, falling back to an empty
// object so a marshal failure never blocks the audit write.
func auditDetails(payload map[string]any) datatypes.JSON {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	return datatypes.JSON(raw)
}

// DetailsAs decodes an entry's details payload into out, which must be a
// pointer to a struct with `mapstructure` (or matching field) tags.
func (e *AuditEntry) DetailsAs(out any) error {
	var m map[string]any
	if err := json.Unmarshal(e.Details, &m); err != nil {
		return err
	}
	return mapstructure.Decode(m, out)
}

// AppendAudit inserts one audit entry. Callers treat failures as
// non-critical: the surrounding mutation commits regardless.
func (s *Store) AppendAudit(ctx context.Context, rtype ResourceType, resourceID, actorID int64, action string, details map[string]any) error {
	entry := &AuditEntry{
		ResourceType: rtype,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Action:       action,
		Details:      auditDetails(details),
		CreatedAt:    time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("append audit entry", err)
	}
	return nil
}

// ListAudit returns the newest entries for a resource, most recent first.
func (s *Store) ListAudit(ctx context.Context, rtype ResourceType, resourceID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []AuditEntry
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", rtype, resourceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, storeErr("list audit entries", err)
	}
	return entries, nil
}
