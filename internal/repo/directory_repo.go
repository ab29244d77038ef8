// Package repo – read-side lookups into the tenant directory slices
// (applications, interviewers, provider configs, tenant settings).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// GetApplicationForTenant fetches an application scoped to tenantID, or
// ErrNotFound (including when the application belongs to another tenant).
func GetApplicationForTenant(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListInterviewersByIDs returns the tenant's interviewers matching ids.
// Callers compare the result length against len(ids) to detect unknown or
// cross-tenant interviewers.
func ListInterviewersByIDs(ctx context.Context, db *gorm.DB, tenantID string, ids []string) ([]domain.Interviewer, error) {
	if len(ids) == 0 {
		return []domain.Interviewer{}, nil
	}
	var out []domain.Interviewer
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&out).Error
	return out, err
}

// GetInterviewer fetches one interviewer by ID without tenant scoping. Used
// by internal paths (reminder sweep) that start from an interview row.
func GetInterviewer(ctx context.Context, db *gorm.DB, id string) (*domain.Interviewer, error) {
	var iv domain.Interviewer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&iv).Error; err != nil {
		return nil, err
	}
	return &iv, nil
}

// GetApplication fetches one application by ID without tenant scoping. Used
// by internal paths that start from an interview row.
func GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var a domain.Application
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetProviderConfig fetches the tenant's OAuth client registration for a
// provider, or ErrNotFound when the provider is not configured.
func GetProviderConfig(ctx context.Context, db *gorm.DB, tenantID string, provider domain.CalendarProvider) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetTenantSettings fetches the tenant's toggles. A missing row is not an
// error; it returns zero-valued settings (every toggle off).
func GetTenantSettings(ctx context.Context, db *gorm.DB, tenantID string) (*domain.TenantSettings, error) {
	var s domain.TenantSettings
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &domain.TenantSettings{TenantID: tenantID}, nil
		}
		return nil, err
	}
	return &s, nil
}
