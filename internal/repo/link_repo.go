// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for scheduling
// links and their append-only event history.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a link is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Tenancy: GetLinkByToken is the only unscoped lookup; it backs the public
// candidate endpoints where the token itself is the credential. Every other
// read and write is tenant-scoped, and a cross-tenant token resolves as
// ErrNotFound rather than a permission error.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateLink inserts a new scheduling link row. The caller supplies the
// fully-populated link (token, denormalized candidate fields, expiry). A
// duplicate token surfaces as the driver's unique-constraint error.
func CreateLink(ctx context.Context, db *gorm.DB, link *domain.SchedulingLink) error {
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	return db.WithContext(ctx).Create(link).Error
}

// GetLinkByToken fetches a link by its token without tenant scoping. Used by
// the public candidate endpoints where possession of the token is the
// authorization. Returns ErrNotFound if missing.
func GetLinkByToken(ctx context.Context, db *gorm.DB, token string) (*domain.SchedulingLink, error) {
	var l domain.SchedulingLink
	err := db.WithContext(ctx).
		Where("token = ?", token).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLinkForTenant fetches a link by token scoped to tenantID. A token owned
// by another tenant returns ErrNotFound.
func GetLinkForTenant(ctx context.Context, db *gorm.DB, token, tenantID string) (*domain.SchedulingLink, error) {
	var l domain.SchedulingLink
	err := db.WithContext(ctx).
		Where("token = ? AND tenant_id = ?", token, tenantID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CountLinks returns the number of links for tenantID, optionally filtered by
// status (empty status means all).
func CountLinks(ctx context.Context, db *gorm.DB, tenantID string, status domain.LinkStatus) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.SchedulingLink{}).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListLinksPage returns a paginated slice of links for tenantID ordered by
// creation time descending, optionally filtered by status. Use CountLinks to
// obtain the total for pagination metadata.
func ListLinksPage(ctx context.Context, db *gorm.DB, tenantID string, status domain.LinkStatus, offset, limit int) ([]domain.SchedulingLink, error) {
	q := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.SchedulingLink
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateLinkStatus transitions a link to status, optionally attaching the
// interview ID created by a booking. Callers enforce the state machine; this
// only persists. Returns ErrNotFound when no row matches.
func UpdateLinkStatus(ctx context.Context, db *gorm.DB, token string, status domain.LinkStatus, interviewID *string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if interviewID != nil {
		updates["interview_id"] = *interviewID
	}
	res := db.WithContext(ctx).
		Model(&domain.SchedulingLink{}).
		Where("token = ?", token).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendLinkEvent inserts one history row for a link transition. History is
// append-only; rows are never updated or deleted.
func AppendLinkEvent(ctx context.Context, db *gorm.DB, token string, status domain.LinkStatus, actorID, note string) error {
	ev := &domain.LinkEvent{
		Token:     token,
		Status:    status,
		ActorID:   actorID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(ev).Error
}

// ListLinkEvents returns the full history for a link, oldest first.
func ListLinkEvents(ctx context.Context, db *gorm.DB, token string) ([]domain.LinkEvent, error) {
	var out []domain.LinkEvent
	err := db.WithContext(ctx).
		Where("token = ?", token).
		Order("id asc").
		Find(&out).Error
	return out, err
}
