// Package services – ReminderService
//
// This file implements the hourly reminder sweep over upcoming interviews.
// The sweep is idempotent at the interview level: each interview's reminder
// flag flips exactly once, and the flag is set after the delivery attempts
// regardless of their outcome so a flaky mail relay cannot make the sweep
// re-spam candidates on the next run.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/notify"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
)

// ReminderService dispatches interview reminders to candidates and
// interviewers. SMS goes out only when the owning tenant has it enabled and
// the candidate has a phone number on file.
type ReminderService struct {
	// DB is the database handle used for the due query and flag updates.
	DB *gorm.DB

	// Email delivers reminder emails. Required.
	Email notify.EmailSender

	// SMS delivers candidate text reminders. Optional.
	SMS notify.SMSSender

	// Window is how far ahead the sweep looks. Zero means 24 hours.
	Window time.Duration
}

func (s *ReminderService) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return 24 * time.Hour
}

// Sweep processes every due interview once. Per-interview failures are logged
// and do not abort the run. Returns the number of interviews processed.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	due, err := repo.DueReminders(ctx, s.DB, now, now.Add(s.window()))
	if err != nil {
		return 0, err
	}

	for i := range due {
		iv := &due[i]
		s.remind(ctx, iv)

		// Flag flips even when delivery failed; partial delivery must not
		// cause duplicate reminders on the next sweep.
		if err := repo.MarkReminderSent(ctx, s.DB, iv.ID); err != nil {
			log.Error().Err(err).Str("interview_id", iv.ID).Msg("marking reminder sent failed")
		}
	}
	return len(due), nil
}

// remind attempts every delivery channel for one interview.
func (s *ReminderService) remind(ctx context.Context, iv *domain.Interview) {
	app, err := repo.GetApplication(ctx, s.DB, iv.ApplicationID)
	if err != nil {
		log.Error().Err(err).Str("interview_id", iv.ID).Msg("reminder skipped, application lookup failed")
		return
	}
	interviewer, err := repo.GetInterviewer(ctx, s.DB, iv.InterviewerID)
	if err != nil {
		log.Warn().Err(err).Str("interview_id", iv.ID).Msg("interviewer lookup failed, candidate-only reminder")
	}

	when := iv.ScheduledAt.UTC().Format("Mon, 02 Jan 2006 15:04")

	if s.Email != nil {
		candidateMsg := notify.Email{
			To:      app.CandidateEmail,
			Subject: fmt.Sprintf("Reminder: %s interview on %s (UTC)", app.JobTitle, when),
			HTML: fmt.Sprintf(
				"<p>Hi %s,</p><p>This is a reminder of your <strong>%s</strong> interview on %s (UTC).</p>%s",
				app.CandidateName, app.JobTitle, when, meetingLinkHTML(iv.MeetingLink),
			),
		}
		if err := s.Email.SendEmail(ctx, candidateMsg); err != nil {
			log.Warn().Err(err).Str("interview_id", iv.ID).Msg("candidate reminder email failed")
		}

		if interviewer != nil {
			interviewerMsg := notify.Email{
				To:      interviewer.Email,
				Subject: fmt.Sprintf("Reminder: interview with %s on %s (UTC)", app.CandidateName, when),
				HTML: fmt.Sprintf(
					"<p>Hi %s,</p><p>You are interviewing <strong>%s</strong> (%s) on %s (UTC).</p>%s",
					interviewer.Name, app.CandidateName, app.JobTitle, when, meetingLinkHTML(iv.MeetingLink),
				),
			}
			if err := s.Email.SendEmail(ctx, interviewerMsg); err != nil {
				log.Warn().Err(err).Str("interview_id", iv.ID).Msg("interviewer reminder email failed")
			}
		}
	}

	s.remindSMS(ctx, iv, app, when)
}

// remindSMS texts the candidate when the tenant toggle is on and a phone
// number exists.
func (s *ReminderService) remindSMS(ctx context.Context, iv *domain.Interview, app *domain.Application, when string) {
	if s.SMS == nil || app.CandidatePhone == "" {
		return
	}
	settings, err := repo.GetTenantSettings(ctx, s.DB, app.TenantID)
	if err != nil {
		log.Warn().Err(err).Str("interview_id", iv.ID).Msg("tenant settings lookup failed, skipping sms")
		return
	}
	if !settings.SMSEnabled {
		return
	}

	res, err := s.SMS.SendSMS(ctx, notify.SMS{
		To:          app.CandidatePhone,
		Body:        fmt.Sprintf("Reminder: your %s interview is on %s (UTC).", app.JobTitle, when),
		TenantID:    app.TenantID,
		CandidateID: app.CandidateID,
	})
	if err != nil {
		log.Warn().Err(err).Str("interview_id", iv.ID).Msg("candidate reminder sms failed")
		return
	}
	if !res.Success {
		log.Warn().Str("interview_id", iv.ID).Str("reason", res.Error).Msg("sms gateway rejected reminder")
	}
}

func meetingLinkHTML(link string) string {
	if link == "" {
		return ""
	}
	return fmt.Sprintf("<p>Join: <a href=%q>%s</a></p>", link, link)
}
