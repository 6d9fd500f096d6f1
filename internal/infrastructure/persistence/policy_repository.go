package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantReturnPolicy is the stored per-tenant return policy. The snapshot
// column holds the full rule set as jsonb; requests copy it at evaluation
// time, so editing a policy never rewrites history.
type TenantReturnPolicy struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_policy_tenant_active,where:active"`
	Snapshot  returns.PolicySnapshot `gorm:"type:jsonb;not null"`
	Active    bool                   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (TenantReturnPolicy) TableName() string {
	return "tenant_return_policies"
}

// GormPolicyStore implements PolicyStore using GORM
type GormPolicyStore struct {
	db *gorm.DB
}

// NewGormPolicyStore creates a new GormPolicyStore
func NewGormPolicyStore(db *gorm.DB) *GormPolicyStore {
	return &GormPolicyStore{db: db}
}

// ActivePolicy returns the active policy snapshot for a tenant
func (s *GormPolicyStore) ActivePolicy(ctx context.Context, tenantID uuid.UUID) (*returns.PolicySnapshot, error) {
	var policy TenantReturnPolicy
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &policy.Snapshot, nil
}

// Upsert replaces the active policy for a tenant
func (s *GormPolicyStore) Upsert(ctx context.Context, tenantID uuid.UUID, snapshot returns.PolicySnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	policy := TenantReturnPolicy{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Snapshot:  snapshot,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:     []clause.Column{{Name: "tenant_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Eq{Column: "active", Value: true}}},
			DoUpdates:   clause.AssignmentColumns([]string{"snapshot", "updated_at"}),
		}).
		Create(&policy).Error
}

// Ensure GormPolicyStore implements PolicyStore
var _ returns.PolicyStore = (*GormPolicyStore)(nil)
