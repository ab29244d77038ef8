// Package repo – repository functions for the Interview model, including the
// range queries behind availability generation and the reminder sweep.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
)

// CreateInterview inserts a new interview row. The ID is a randomly generated
// UUID unless the caller pre-set one (transactional booking does, so the link
// row can reference it before commit).
func CreateInterview(ctx context.Context, db *gorm.DB, iv *domain.Interview) error {
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	iv.CreatedAt = now
	iv.UpdatedAt = now
	if iv.Status == "" {
		iv.Status = domain.InterviewStatusScheduled
	}
	return db.WithContext(ctx).Create(iv).Error
}

// GetInterview fetches one interview by ID, or ErrNotFound.
func GetInterview(ctx context.Context, db *gorm.DB, id string) (*domain.Interview, error) {
	var iv domain.Interview
	if err := db.WithContext(ctx).Where("id = ?", id).First(&iv).Error; err != nil {
		return nil, err
	}
	return &iv, nil
}

// ListInterviewsInRange returns every non-cancelled interview for any of the
// given interviewers that could overlap [start, end). An interview starting
// before the range can still overlap it, so the lower bound subtracts the
// longest plausible duration rather than filtering on scheduled_at alone.
func ListInterviewsInRange(ctx context.Context, db *gorm.DB, interviewerIDs []string, start, end time.Time) ([]domain.Interview, error) {
	if len(interviewerIDs) == 0 {
		return []domain.Interview{}, nil
	}
	// 8h covers the longest slot a business day can hold.
	lower := start.Add(-8 * time.Hour)

	var out []domain.Interview
	err := db.WithContext(ctx).
		Where("interviewer_id IN ?", interviewerIDs).
		Where("status <> ?", domain.InterviewStatusCancelled).
		Where("scheduled_at >= ? AND scheduled_at < ?", lower, end).
		Order("scheduled_at asc").
		Find(&out).Error
	return out, err
}

// DueReminders returns interviews starting within [from, to) that are still
// SCHEDULED and have not had their reminder sent.
func DueReminders(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Interview, error) {
	var out []domain.Interview
	err := db.WithContext(ctx).
		Where("status = ?", domain.InterviewStatusScheduled).
		Where("reminder_sent = ?", false).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Order("scheduled_at asc").
		Find(&out).Error
	return out, err
}

// MarkReminderSent flips the reminder flag for one interview. The flag is
// one-way; nothing in the normal flow resets it.
func MarkReminderSent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Interview{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reminder_sent": true,
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

// UpdateInterviewMeetingLink attaches the provider meeting link once the
// external event sync has produced one.
func UpdateInterviewMeetingLink(ctx context.Context, db *gorm.DB, id, meetingLink string) error {
	return db.WithContext(ctx).
		Model(&domain.Interview{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"meeting_link": meetingLink,
			"updated_at":   time.Now().UTC(),
		}).Error
}
