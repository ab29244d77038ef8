// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// LinksStats returns aggregate metadata for a tenant's scheduling links: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the tenant has no links, the returned count is 0 and maxUpdatedAt is
// nil. Used by the list endpoint to derive a weak ETag without loading rows.
func LinksStats(ctx context.Context, db *gorm.DB, tenantID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.SchedulingLink{}).Where("tenant_id = ?", tenantID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
