// Package services – SchedulingService
//
// This file implements the SchedulingService, which governs the
// self-scheduling link lifecycle (create, list, cancel), candidate-facing
// availability and booking, and suggested-slot ranking. Booking runs inside a
// single database transaction so the ACTIVE recheck, interview insert, link
// transition, and history append commit or roll back together; notifications
// and external calendar sync happen after commit and are best effort.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/availability"
	"github.com/rav4353/ayphen-scheduling/internal/calendar"
	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/notify"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
)

const (
	minDurationMinutes = 15
	maxDurationMinutes = 480

	// maxSuggestions caps the ranked slot list returned by SuggestSlots.
	maxSuggestions = 20
)

// SchedulingService implements the use-cases around self-scheduling links and
// bookings. Calendars and Email are optional; when nil the corresponding
// side effects are skipped.
type SchedulingService struct {
	// DB is the database handle used for all scheduling operations.
	DB *gorm.DB

	// Calendars supplies provider busy data and post-booking event sync.
	Calendars *CalendarService

	// Email delivers link invitations and booking confirmations.
	Email notify.EmailSender

	// LinkTTL is how long a new link stays bookable. Zero means 7 days.
	LinkTTL time.Duration

	// PublicBaseURL prefixes the candidate-facing link URL in emails.
	PublicBaseURL string
}

// CreateLinkInput carries the recruiter's parameters for a new link.
type CreateLinkInput struct {
	ApplicationID   string
	InterviewerIDs  []string
	DurationMinutes int
	InterviewType   string
	Instructions    string
}

// newLinkToken builds a collision-resistant opaque token. The millisecond
// prefix keeps tokens roughly sortable for operators; the random suffix
// carries the entropy.
func newLinkToken() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process cannot mint credentials.
		panic(fmt.Sprintf("services: crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("sched-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

func (s *SchedulingService) linkTTL() time.Duration {
	if s.LinkTTL > 0 {
		return s.LinkTTL
	}
	return 7 * 24 * time.Hour
}

// CreateLink validates the application and interviewer set, mints a token,
// and persists the link together with its first history event. On success it
// emails the candidate their booking URL (best effort).
func (s *SchedulingService) CreateLink(ctx context.Context, tenantID, userID string, in CreateLinkInput) (*domain.SchedulingLink, error) {
	if in.DurationMinutes < minDurationMinutes || in.DurationMinutes > maxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	if len(in.InterviewerIDs) == 0 {
		return nil, ErrInterviewerNotFound
	}

	app, err := repo.GetApplicationForTenant(ctx, s.DB, in.ApplicationID, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	interviewers, err := repo.ListInterviewersByIDs(ctx, s.DB, tenantID, in.InterviewerIDs)
	if err != nil {
		return nil, err
	}
	if len(interviewers) != len(dedupe(in.InterviewerIDs)) {
		return nil, ErrInterviewerNotFound
	}

	link := &domain.SchedulingLink{
		Token:           newLinkToken(),
		TenantID:        tenantID,
		ApplicationID:   app.ID,
		CandidateID:     app.CandidateID,
		CandidateName:   app.CandidateName,
		CandidateEmail:  app.CandidateEmail,
		JobTitle:        app.JobTitle,
		InterviewerIDs:  joinIDs(dedupe(in.InterviewerIDs)),
		DurationMinutes: in.DurationMinutes,
		InterviewType:   in.InterviewType,
		Instructions:    in.Instructions,
		Status:          domain.LinkStatusActive,
		ExpiresAt:       time.Now().UTC().Add(s.linkTTL()),
		CreatedBy:       userID,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateLink(ctx, tx, link); err != nil {
			return err
		}
		return repo.AppendLinkEvent(ctx, tx, link.Token, domain.LinkStatusActive, userID, "link created")
	})
	if err != nil {
		return nil, err
	}

	s.sendInvitation(ctx, link)
	return link, nil
}

// GetLink fetches a link with its full history, scoped to the tenant.
func (s *SchedulingService) GetLink(ctx context.Context, tenantID, token string) (*domain.SchedulingLink, []domain.LinkEvent, error) {
	link, err := repo.GetLinkForTenant(ctx, s.DB, token, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrLinkNotFound
		}
		return nil, nil, err
	}
	events, err := repo.ListLinkEvents(ctx, s.DB, token)
	if err != nil {
		return nil, nil, err
	}
	return link, events, nil
}

// ListLinks returns one page of the tenant's links plus the unfiltered total
// for pagination metadata. status may be empty for all.
func (s *SchedulingService) ListLinks(ctx context.Context, tenantID string, status domain.LinkStatus, offset, limit int) ([]domain.SchedulingLink, int64, error) {
	total, err := repo.CountLinks(ctx, s.DB, tenantID, status)
	if err != nil {
		return nil, 0, err
	}
	links, err := repo.ListLinksPage(ctx, s.DB, tenantID, status, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

// CancelLink transitions an ACTIVE link to CANCELLED. Terminal states are
// rejected with ErrLinkNotActive; cross-tenant tokens resolve as not-found.
func (s *SchedulingService) CancelLink(ctx context.Context, tenantID, userID, token string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := repo.GetLinkForTenant(ctx, tx, token, tenantID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrLinkNotFound
			}
			return err
		}
		if link.Status != domain.LinkStatusActive {
			return ErrLinkNotActive
		}
		if err := repo.UpdateLinkStatus(ctx, tx, token, domain.LinkStatusCancelled, nil); err != nil {
			return err
		}
		return repo.AppendLinkEvent(ctx, tx, token, domain.LinkStatusCancelled, userID, "link cancelled")
	})
}

// PublicLink resolves a candidate-facing token. Cancelled and booked links
// and expired ones surface as their sentinel errors so the handler can show
// the right page.
func (s *SchedulingService) PublicLink(ctx context.Context, token string) (*domain.SchedulingLink, error) {
	link, err := repo.GetLinkByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	if link.Status != domain.LinkStatusActive {
		return link, ErrLinkNotActive
	}
	if time.Now().UTC().After(link.ExpiresAt) {
		return link, ErrLinkExpired
	}
	return link, nil
}

// AvailableSlots generates the candidate's bookable slots for a link. A slot
// is available when at least one of the link's interviewers is free for it;
// booking later picks a free interviewer for the chosen slot.
func (s *SchedulingService) AvailableSlots(ctx context.Context, token string, from, to time.Time) ([]availability.Slot, error) {
	link, err := s.PublicLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	duration := time.Duration(link.DurationMinutes) * time.Minute
	now := time.Now().UTC()
	base := availability.Generate(from, to, nil, duration, now)
	if len(base) == 0 {
		return base, nil
	}

	busyByInterviewer, err := s.interviewerBusy(ctx, s.DB, link, from, to)
	if err != nil {
		return nil, err
	}

	for i := range base {
		base[i].Available = false
		for _, busy := range busyByInterviewer {
			if interviewerFree(base[i], busy) {
				base[i].Available = true
				break
			}
		}
	}
	return base, nil
}

// interviewerBusy collects each link interviewer's busy intervals from local
// interviews plus best-effort provider data.
func (s *SchedulingService) interviewerBusy(ctx context.Context, db *gorm.DB, link *domain.SchedulingLink, from, to time.Time) (map[string][]availability.Interval, error) {
	ids := link.Interviewers()
	interviews, err := repo.ListInterviewsInRange(ctx, db, ids, from, to)
	if err != nil {
		return nil, err
	}

	busy := make(map[string][]availability.Interval, len(ids))
	for _, id := range ids {
		busy[id] = nil
	}
	for _, iv := range interviews {
		busy[iv.InterviewerID] = append(busy[iv.InterviewerID],
			availability.Interval{Start: iv.ScheduledAt, End: iv.EndsAt()})
	}
	if s.Calendars != nil {
		for _, id := range ids {
			busy[id] = append(busy[id], s.Calendars.busyBestEffort(ctx, link.TenantID, id, from, to)...)
		}
	}
	return busy, nil
}

func interviewerFree(slot availability.Slot, busy []availability.Interval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return false
		}
	}
	return true
}

// BookInput carries the candidate's slot choice. InterviewerID is optional;
// when empty the service assigns any free interviewer from the link.
type BookInput struct {
	Start         time.Time
	InterviewerID string
}

// Book books a slot against a link. The ACTIVE recheck, slot validation,
// interview insert, link transition, and history append run in one
// transaction; a concurrent booking loses on the recheck and gets
// ErrLinkNotActive. Confirmation email and calendar sync follow after commit.
func (s *SchedulingService) Book(ctx context.Context, token string, in BookInput) (*domain.Interview, error) {
	var booked *domain.Interview
	var link *domain.SchedulingLink

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		link, err = repo.GetLinkByToken(ctx, tx, token)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrLinkNotFound
			}
			return err
		}
		if link.Status != domain.LinkStatusActive {
			return ErrLinkNotActive
		}
		now := time.Now().UTC()
		if now.After(link.ExpiresAt) {
			return ErrLinkExpired
		}

		duration := time.Duration(link.DurationMinutes) * time.Minute
		if err := validateSlotStart(in.Start, duration, now); err != nil {
			return err
		}

		candidates := link.Interviewers()
		if in.InterviewerID != "" {
			if !link.HasInterviewer(in.InterviewerID) {
				return ErrInterviewerNotOnLink
			}
			candidates = []string{in.InterviewerID}
		}

		interviewerID, err := s.pickFreeInterviewer(ctx, tx, candidates, in.Start, in.Start.Add(duration))
		if err != nil {
			return err
		}

		booked = &domain.Interview{
			ApplicationID:   link.ApplicationID,
			InterviewerID:   interviewerID,
			ScheduledAt:     in.Start.UTC(),
			DurationMinutes: link.DurationMinutes,
			Type:            link.InterviewType,
			Status:          domain.InterviewStatusScheduled,
		}
		if err := repo.CreateInterview(ctx, tx, booked); err != nil {
			return err
		}
		if err := repo.UpdateLinkStatus(ctx, tx, token, domain.LinkStatusBooked, &booked.ID); err != nil {
			return err
		}
		return repo.AppendLinkEvent(ctx, tx, token, domain.LinkStatusBooked, link.CandidateID, "slot booked by candidate")
	})
	if err != nil {
		return nil, err
	}

	s.afterBooking(ctx, link, booked)
	return booked, nil
}

// validateSlotStart enforces the slot grid: future start, weekday, whole
// business-hours fit. Starts are whole-hour anchored, matching the grid the
// candidate was offered.
func validateSlotStart(start time.Time, duration time.Duration, now time.Time) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	if !start.After(now) {
		return ErrSlotUnavailable
	}
	if start.Minute() != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
		return ErrSlotUnavailable
	}
	if wd := start.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return ErrSlotUnavailable
	}
	if start.Hour() < availability.BusinessOpenHour {
		return ErrSlotUnavailable
	}
	end := start.Add(duration)
	dayClose := time.Date(start.Year(), start.Month(), start.Day(),
		availability.BusinessCloseHour, 0, 0, 0, start.Location())
	if end.After(dayClose) {
		return ErrSlotUnavailable
	}
	return nil
}

// pickFreeInterviewer returns the first candidate with no overlapping
// non-cancelled interview in [start, end).
func (s *SchedulingService) pickFreeInterviewer(ctx context.Context, tx *gorm.DB, candidates []string, start, end time.Time) (string, error) {
	interviews, err := repo.ListInterviewsInRange(ctx, tx, candidates, start, end)
	if err != nil {
		return "", err
	}
	busy := make(map[string]bool)
	for _, iv := range interviews {
		if iv.ScheduledAt.Before(end) && iv.EndsAt().After(start) {
			busy[iv.InterviewerID] = true
		}
	}
	for _, id := range candidates {
		if !busy[id] {
			return id, nil
		}
	}
	return "", ErrSlotUnavailable
}

// afterBooking runs the post-commit side effects: confirmation email with an
// ICS invite and best-effort external calendar sync.
func (s *SchedulingService) afterBooking(ctx context.Context, link *domain.SchedulingLink, iv *domain.Interview) {
	if s.Calendars != nil {
		s.Calendars.SyncInterviewEvent(ctx, link.TenantID, iv,
			fmt.Sprintf("Interview: %s (%s)", link.CandidateName, link.JobTitle),
			link.Instructions,
			[]string{link.CandidateEmail},
		)
	}
	if s.Email == nil {
		return
	}

	ics := calendar.BuildICS(calendar.ICSInvite{
		Title:       fmt.Sprintf("Interview: %s", link.JobTitle),
		Description: link.Instructions,
		Location:    iv.MeetingLink,
		Start:       iv.ScheduledAt,
		End:         iv.EndsAt(),
		Attendees:   []string{link.CandidateEmail},
	})
	msg := notify.Email{
		To:      link.CandidateEmail,
		Subject: fmt.Sprintf("Interview confirmed: %s", link.JobTitle),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Your interview for <strong>%s</strong> is confirmed for %s (UTC).</p>",
			link.CandidateName, link.JobTitle, iv.ScheduledAt.UTC().Format("Mon, 02 Jan 2006 15:04"),
		),
		AttachmentName: "interview.ics",
		Attachment:     []byte(ics),
	}
	if err := s.Email.SendEmail(ctx, msg); err != nil {
		log.Warn().Err(err).Str("token", link.Token).Msg("booking confirmation email failed")
	}
}

// sendInvitation emails the candidate their booking URL. Best effort.
func (s *SchedulingService) sendInvitation(ctx context.Context, link *domain.SchedulingLink) {
	if s.Email == nil {
		return
	}
	url := fmt.Sprintf("%s/schedule/%s", s.PublicBaseURL, link.Token)
	msg := notify.Email{
		To:      link.CandidateEmail,
		Subject: fmt.Sprintf("Schedule your interview: %s", link.JobTitle),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Please pick a time for your <strong>%s</strong> interview:</p><p><a href=%q>%s</a></p><p>This link expires on %s (UTC).</p>",
			link.CandidateName, link.JobTitle, url, url,
			link.ExpiresAt.UTC().Format("Mon, 02 Jan 2006 15:04"),
		),
	}
	if err := s.Email.SendEmail(ctx, msg); err != nil {
		log.Warn().Err(err).Str("token", link.Token).Msg("link invitation email failed")
	}
}

// SuggestInput parameterizes suggested-slot ranking for a panel.
type SuggestInput struct {
	InterviewerIDs  []string
	DurationMinutes int
	From            time.Time
	To              time.Time
	// PreferredDates are "2006-01-02" strings that earn a ranking bonus.
	PreferredDates []string
}

// SuggestedSlot is one ranked candidate slot.
type SuggestedSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score int       `json:"score"`
}

// SuggestSlots ranks the panel's common free slots by desirability:
// mid-morning and mid-afternoon hours score higher, Tuesday/Wednesday beat
// the edges of the week, near-term and preferred dates earn bonuses. Scores
// clamp to [0, 100] and only the top slots are returned.
func (s *SchedulingService) SuggestSlots(ctx context.Context, tenantID string, in SuggestInput) ([]SuggestedSlot, error) {
	if in.DurationMinutes < minDurationMinutes || in.DurationMinutes > maxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	if len(in.InterviewerIDs) == 0 {
		return nil, ErrInterviewerNotFound
	}
	if s.Calendars == nil {
		return nil, ErrUnsupportedProvider
	}

	common, err := s.Calendars.CommonAvailability(ctx, tenantID, in.InterviewerIDs,
		in.From, in.To, time.Duration(in.DurationMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	preferred := make(map[string]bool, len(in.PreferredDates))
	for _, d := range in.PreferredDates {
		preferred[d] = true
	}

	now := time.Now().UTC()
	out := make([]SuggestedSlot, 0, len(common))
	for _, slot := range common {
		out = append(out, SuggestedSlot{
			Start: slot.Start,
			End:   slot.End,
			Score: scoreSlot(slot.Start, now, preferred),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, nil
}

// scoreSlot rates one slot start on a 0-100 scale.
func scoreSlot(start, now time.Time, preferred map[string]bool) int {
	score := 50

	switch start.Hour() {
	case 10, 11:
		score += 15
	case 14, 15:
		score += 10
	case 9, 16:
		score -= 5
	}

	switch start.Weekday() {
	case time.Tuesday, time.Wednesday:
		score += 10
	case time.Monday, time.Friday:
		score -= 5
	}

	if start.Sub(now) <= 3*24*time.Hour {
		score += 10
	}
	if preferred[start.UTC().Format("2006-01-02")] {
		score += 20
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
