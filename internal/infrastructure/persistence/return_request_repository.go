package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormReturnRequestRepository implements ReturnRequestRepository using GORM
type GormReturnRequestRepository struct {
	db *gorm.DB
}

// NewGormReturnRequestRepository creates a new GormReturnRequestRepository
func NewGormReturnRequestRepository(db *gorm.DB) *GormReturnRequestRepository {
	return &GormReturnRequestRepository{db: db}
}

// Create persists a new return request with its line items and audit log
// in a single transaction
func (r *GormReturnRequestRepository) Create(ctx context.Context, rr *returns.ReturnRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "AuditLog").Create(rr).Error; err != nil {
			return err
		}

		for i := range rr.Items {
			rr.Items[i].ReturnRequestID = rr.ID
			if err := tx.Create(&rr.Items[i]).Error; err != nil {
				return err
			}
		}

		for i := range rr.AuditLog {
			rr.AuditLog[i].ReturnRequestID = rr.ID
			if err := tx.Create(&rr.AuditLog[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// FindByIDForTenant loads a return request by ID within a tenant, including
// its line items and the full audit timeline in sequence order
func (r *GormReturnRequestRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*returns.ReturnRequest, error) {
	var rr returns.ReturnRequest
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("AuditLog", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&rr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rr, nil
}

// FindAllForTenant lists return requests for a tenant, optionally filtered
// by status
func (r *GormReturnRequestRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, status *returns.Status, filter shared.Filter) ([]returns.ReturnRequest, error) {
	var requests []returns.ReturnRequest
	query := r.db.WithContext(ctx).
		Model(&returns.ReturnRequest{}).
		Preload("Items").
		Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	query = r.applyFilter(query, filter)

	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// CountForTenant counts return requests for a tenant, optionally filtered
// by status
func (r *GormReturnRequestRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, status *returns.Status) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&returns.ReturnRequest{}).
		Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveWithLock persists a mutated return request with optimistic locking.
// The update succeeds only when the stored version still equals
// expectedVersion; audit events past the stored sequence are inserted in
// the same transaction. Line items are immutable after creation and are
// never rewritten here.
func (r *GormReturnRequestRepository) SaveWithLock(ctx context.Context, rr *returns.ReturnRequest, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rr.Version = expectedVersion + 1
		rr.UpdatedAt = time.Now()

		result := tx.Model(&returns.ReturnRequest{}).
			Where("id = ? AND tenant_id = ? AND version = ?", rr.ID, rr.TenantID, expectedVersion).
			Updates(map[string]any{
				"status":            rr.Status,
				"auto_approved":     rr.AutoApproved,
				"override_approved": rr.OverrideApproved,
				"override_note":     rr.OverrideNote,
				"override_tags":     rr.OverrideTags,
				"decided_at":        rr.DecidedAt,
				"resolved_at":       rr.ResolvedAt,
				"archived_at":       rr.ArchivedAt,
				"version":           rr.Version,
				"updated_at":        rr.UpdatedAt,
			})
		if result.Error != nil {
			rr.Version = expectedVersion
			return result.Error
		}
		if result.RowsAffected == 0 {
			rr.Version = expectedVersion
			var count int64
			if err := tx.Model(&returns.ReturnRequest{}).
				Where("id = ? AND tenant_id = ?", rr.ID, rr.TenantID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		// Append only audit events the database has not seen yet. The
		// unique (return_request_id, seq) index backstops double inserts.
		var storedSeq int64
		if err := tx.Model(&returns.AuditEvent{}).
			Where("return_request_id = ?", rr.ID).
			Count(&storedSeq).Error; err != nil {
			return err
		}
		for i := range rr.AuditLog {
			if int64(rr.AuditLog[i].Seq) <= storedSeq {
				continue
			}
			rr.AuditLog[i].ReturnRequestID = rr.ID
			if err := tx.Create(&rr.AuditLog[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// CountByStatus returns per-status request counts for a tenant
func (r *GormReturnRequestRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[returns.Status]int64, error) {
	type statusCount struct {
		Status returns.Status
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&returns.ReturnRequest{}).
		Select("status, COUNT(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[returns.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// GenerateRequestNumber generates a unique request number for a tenant.
// Format: RR-YYYY-NNNNN (e.g., RR-2026-00001)
func (r *GormReturnRequestRepository) GenerateRequestNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("RR-%d-", year)

	var lastRequest returns.ReturnRequest
	err := r.db.WithContext(ctx).
		Model(&returns.ReturnRequest{}).
		Where("tenant_id = ? AND request_number LIKE ?", tenantID, prefix+"%").
		Order("request_number DESC").
		First(&lastRequest).Error

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var nextNum int64 = 1
	if err == nil && lastRequest.RequestNumber != "" {
		parts := strings.Split(lastRequest.RequestNumber, "-")
		if len(parts) == 3 {
			var num int64
			if _, parseErr := fmt.Sscanf(parts[2], "%d", &num); parseErr == nil {
				nextNum = num + 1
			}
		}
	}

	requestNumber := fmt.Sprintf("%s%05d", prefix, nextNum)

	exists, err := r.existsByRequestNumber(ctx, tenantID, requestNumber)
	if err != nil {
		return "", err
	}
	if exists {
		for range 100 {
			nextNum++
			requestNumber = fmt.Sprintf("%s%05d", prefix, nextNum)
			exists, err = r.existsByRequestNumber(ctx, tenantID, requestNumber)
			if err != nil {
				return "", err
			}
			if !exists {
				break
			}
		}
	}

	return requestNumber, nil
}

func (r *GormReturnRequestRepository) existsByRequestNumber(ctx context.Context, tenantID uuid.UUID, requestNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&returns.ReturnRequest{}).
		Where("tenant_id = ? AND request_number = ?", tenantID, requestNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies pagination and ordering to the query
func (r *GormReturnRequestRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("request_number ILIKE ? OR order_order_number ILIKE ? OR order_customer_email ILIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	query = query.Offset(filter.Offset()).Limit(filter.Limit())

	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}

// Ensure GormReturnRequestRepository implements ReturnRequestRepository
var _ returns.ReturnRequestRepository = (*GormReturnRequestRepository)(nil)
