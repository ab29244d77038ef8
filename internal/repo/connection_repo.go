// Package repo – repository functions for calendar connections (per-user
// OAuth credential records) and locally mirrored calendar events.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// UpsertConnection inserts or replaces the (user, provider) connection row.
// Reconnecting overwrites tokens and reactivates the record in place so the
// ux_conn_user_provider constraint holds.
func UpsertConnection(ctx context.Context, db *gorm.DB, conn *domain.CalendarConnection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	conn.IsActive = true

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "refresh_token", "token_expires_at",
				"email", "calendar_id", "is_active", "updated_at",
			}),
		}).
		Create(conn).Error
}

// GetActiveConnection fetches the active connection for (userID, provider),
// or ErrNotFound.
func GetActiveConnection(ctx context.Context, db *gorm.DB, userID string, provider domain.CalendarProvider) (*domain.CalendarConnection, error) {
	var c domain.CalendarConnection
	err := db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConnections returns every connection a user holds, active or not,
// newest first.
func ListConnections(ctx context.Context, db *gorm.DB, userID string) ([]domain.CalendarConnection, error) {
	var out []domain.CalendarConnection
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// DeactivateConnection soft-disables a connection. The row stays so the
// provider/email pairing survives for audit; tokens are cleared. Returns
// ErrNotFound when no active row matches, so a repeat disconnect fails
// instead of silently matching the already-disabled row.
func DeactivateConnection(ctx context.Context, db *gorm.DB, userID string, provider domain.CalendarProvider) error {
	res := db.WithContext(ctx).
		Model(&domain.CalendarConnection{}).
		Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		Updates(map[string]any{
			"is_active":     false,
			"access_token":  "",
			"refresh_token": "",
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateConnectionTokens persists a refreshed token pair. An empty
// refreshToken keeps the stored one (Google omits it on refresh responses).
func UpdateConnectionTokens(ctx context.Context, db *gorm.DB, id, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := map[string]any{
		"access_token":     accessToken,
		"token_expires_at": expiresAt,
		"updated_at":       time.Now().UTC(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	res := db.WithContext(ctx).
		Model(&domain.CalendarConnection{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchConnectionSync stamps the last successful provider round-trip.
func TouchConnectionSync(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.CalendarConnection{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_sync_at": now, "updated_at": now}).Error
}

// CreateCalendarEvent inserts a locally mirrored event row.
func CreateCalendarEvent(ctx context.Context, db *gorm.DB, ev *domain.CalendarEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	return db.WithContext(ctx).Create(ev).Error
}

// ListCalendarEventsForInterview returns the local event rows tied to one
// interview (one per synced interviewer calendar).
func ListCalendarEventsForInterview(ctx context.Context, db *gorm.DB, interviewID string) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	err := db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
