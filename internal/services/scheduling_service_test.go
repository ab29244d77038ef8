package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/notify"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeEmail records sent messages; optionally fails every send.
type fakeEmail struct {
	mu   sync.Mutex
	sent []notify.Email
	fail bool
}

func (f *fakeEmail) SendEmail(_ context.Context, msg notify.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("relay down")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func seedApp(t *testing.T, db *gorm.DB, id, tenantID string) {
	t.Helper()
	app := &domain.Application{
		ID: id, TenantID: tenantID, CandidateID: "cand-1",
		CandidateName: "Ada Lovelace", CandidateEmail: "ada@x.com",
		CandidatePhone: "+15551234", JobTitle: "Backend Engineer",
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("seed application: %v", err)
	}
}

func seedInterviewer(t *testing.T, db *gorm.DB, id, tenantID string) {
	t.Helper()
	iv := &domain.Interviewer{ID: id, TenantID: tenantID, Name: "Bo", Email: id + "@x.com"}
	if err := db.Create(iv).Error; err != nil {
		t.Fatalf("seed interviewer: %v", err)
	}
}

func newSchedulingService(t *testing.T, db *gorm.DB) (*SchedulingService, *fakeEmail) {
	t.Helper()
	email := &fakeEmail{}
	return &SchedulingService{
		DB:            db,
		Email:         email,
		PublicBaseURL: "https://ats.example.com",
	}, email
}

// monday is a weekday well in the future for slot-timing tests.
var monday = time.Date(2030, time.June, 3, 0, 0, 0, 0, time.UTC)

func mustCreateLink(t *testing.T, s *SchedulingService, tenantID string, interviewers ...string) *domain.SchedulingLink {
	t.Helper()
	link, err := s.CreateLink(context.Background(), tenantID, "recruiter-1", CreateLinkInput{
		ApplicationID:   "app-1",
		InterviewerIDs:  interviewers,
		DurationMinutes: 60,
		InterviewType:   "VIDEO",
		Instructions:    "Bring questions",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	return link
}

func TestCreateLink_Success(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	seedInterviewer(t, db, "i2", "t1")
	s, email := newSchedulingService(t, db)

	link := mustCreateLink(t, s, "t1", "i1", "i2")

	if !strings.HasPrefix(link.Token, "sched-") {
		t.Fatalf("token format: %q", link.Token)
	}
	if link.Status != domain.LinkStatusActive {
		t.Fatalf("status = %q", link.Status)
	}
	if link.CandidateEmail != "ada@x.com" || link.JobTitle != "Backend Engineer" {
		t.Fatalf("candidate fields not denormalized: %+v", link)
	}
	if got := link.Interviewers(); len(got) != 2 {
		t.Fatalf("interviewers = %v", got)
	}
	if link.ExpiresAt.Before(time.Now().UTC().Add(6 * 24 * time.Hour)) {
		t.Fatalf("default expiry too soon: %v", link.ExpiresAt)
	}

	events, err := repo.ListLinkEvents(context.Background(), db, link.Token)
	if err != nil || len(events) != 1 || events[0].Status != domain.LinkStatusActive {
		t.Fatalf("expected one ACTIVE history event, got %+v, %v", events, err)
	}
	if email.count() != 1 {
		t.Fatalf("expected invitation email, got %d", email.count())
	}
	if !strings.Contains(email.sent[0].HTML, "/schedule/"+link.Token) {
		t.Fatal("invitation missing booking URL")
	}
}

func TestCreateLink_TokensUnique(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		link := mustCreateLink(t, s, "t1", "i1")
		if seen[link.Token] {
			t.Fatalf("duplicate token minted: %s", link.Token)
		}
		seen[link.Token] = true
	}
}

func TestCreateLink_ValidationFailures(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	_, err := s.CreateLink(ctx, "t1", "u1", CreateLinkInput{
		ApplicationID: "app-1", InterviewerIDs: []string{"i1"}, DurationMinutes: 5, InterviewType: "VIDEO",
	})
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("short duration: %v", err)
	}

	_, err = s.CreateLink(ctx, "t2", "u1", CreateLinkInput{
		ApplicationID: "app-1", InterviewerIDs: []string{"i1"}, DurationMinutes: 60, InterviewType: "VIDEO",
	})
	if !errors.Is(err, ErrApplicationNotFound) {
		t.Fatalf("cross-tenant application: %v", err)
	}

	_, err = s.CreateLink(ctx, "t1", "u1", CreateLinkInput{
		ApplicationID: "app-1", InterviewerIDs: []string{"i1", "ghost"}, DurationMinutes: 60, InterviewType: "VIDEO",
	})
	if !errors.Is(err, ErrInterviewerNotFound) {
		t.Fatalf("unknown interviewer: %v", err)
	}
}

func TestCancelLink_Lifecycle(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1")

	if err := s.CancelLink(ctx, "t2", "u1", link.Token); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("cross-tenant cancel should be not-found: %v", err)
	}
	if err := s.CancelLink(ctx, "t1", "u1", link.Token); err != nil {
		t.Fatalf("CancelLink: %v", err)
	}
	if err := s.CancelLink(ctx, "t1", "u1", link.Token); !errors.Is(err, ErrLinkNotActive) {
		t.Fatalf("terminal state must reject transition: %v", err)
	}

	_, events, err := s.GetLink(ctx, "t1", link.Token)
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if len(events) != 2 || events[1].Status != domain.LinkStatusCancelled {
		t.Fatalf("history = %+v", events)
	}
}

func TestPublicLink_StatusAndExpiry(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	if _, err := s.PublicLink(ctx, "missing"); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("missing token: %v", err)
	}

	link := mustCreateLink(t, s, "t1", "i1")
	if _, err := s.PublicLink(ctx, link.Token); err != nil {
		t.Fatalf("active link should resolve: %v", err)
	}

	db.Model(&domain.SchedulingLink{}).Where("token = ?", link.Token).
		Update("expires_at", time.Now().UTC().Add(-time.Hour))
	if _, err := s.PublicLink(ctx, link.Token); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expired link: %v", err)
	}

	cancelled := mustCreateLink(t, s, "t1", "i1")
	if err := s.CancelLink(ctx, "t1", "u1", cancelled.Token); err != nil {
		t.Fatalf("CancelLink: %v", err)
	}
	if _, err := s.PublicLink(ctx, cancelled.Token); !errors.Is(err, ErrLinkNotActive) {
		t.Fatalf("cancelled link: %v", err)
	}
}

func TestAvailableSlots_AnyFreeInterviewer(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	seedInterviewer(t, db, "i2", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1", "i2")

	// i1 busy 10:00; i2 busy 10:00 and 14:00. The 10:00 slot has no free
	// interviewer; 14:00 still has i1.
	for _, seed := range []struct {
		id   string
		hour int
	}{{"i1", 10}, {"i2", 10}, {"i2", 14}} {
		iv := &domain.Interview{
			ApplicationID: "app-1", InterviewerID: seed.id,
			ScheduledAt: monday.Add(time.Duration(seed.hour) * time.Hour), DurationMinutes: 60,
			Type: "VIDEO", Status: domain.InterviewStatusScheduled,
		}
		if err := repo.CreateInterview(ctx, db, iv); err != nil {
			t.Fatalf("seed interview: %v", err)
		}
	}

	slots, err := s.AvailableSlots(ctx, link.Token, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		wantAvailable := slot.Start.Hour() != 10
		if slot.Available != wantAvailable {
			t.Fatalf("slot %v available=%v, want %v", slot.Start, slot.Available, wantAvailable)
		}
	}
}

func TestBook_Success(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, email := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1")
	start := monday.Add(10 * time.Hour)

	iv, err := s.Book(ctx, link.Token, BookInput{Start: start})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if iv.InterviewerID != "i1" || !iv.ScheduledAt.Equal(start) || iv.Status != domain.InterviewStatusScheduled {
		t.Fatalf("interview = %+v", iv)
	}

	got, err := repo.GetLinkByToken(ctx, db, link.Token)
	if err != nil {
		t.Fatalf("reload link: %v", err)
	}
	if got.Status != domain.LinkStatusBooked || got.InterviewID == nil || *got.InterviewID != iv.ID {
		t.Fatalf("link not transitioned: %+v", got)
	}

	events, _ := repo.ListLinkEvents(ctx, db, link.Token)
	if len(events) != 2 || events[1].Status != domain.LinkStatusBooked {
		t.Fatalf("history = %+v", events)
	}

	// Invitation + confirmation.
	if email.count() != 2 {
		t.Fatalf("expected 2 emails, got %d", email.count())
	}
	conf := email.sent[1]
	if conf.AttachmentName != "interview.ics" || !strings.Contains(string(conf.Attachment), "BEGIN:VCALENDAR") {
		t.Fatal("confirmation missing ICS attachment")
	}
}

func TestBook_SecondBookingLoses(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1")
	if _, err := s.Book(ctx, link.Token, BookInput{Start: monday.Add(10 * time.Hour)}); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := s.Book(ctx, link.Token, BookInput{Start: monday.Add(11 * time.Hour)}); !errors.Is(err, ErrLinkNotActive) {
		t.Fatalf("second booking should lose on the recheck: %v", err)
	}

	var count int64
	db.Model(&domain.Interview{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one interview, got %d", count)
	}
}

func TestBook_PicksFreeInterviewer(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	seedInterviewer(t, db, "i2", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	// i1 already has a 10:00 interview; booking 10:00 must land on i2.
	busy := &domain.Interview{
		ApplicationID: "app-other", InterviewerID: "i1",
		ScheduledAt: monday.Add(10 * time.Hour), DurationMinutes: 60,
		Type: "VIDEO", Status: domain.InterviewStatusScheduled,
	}
	if err := repo.CreateInterview(ctx, db, busy); err != nil {
		t.Fatalf("seed: %v", err)
	}

	link := mustCreateLink(t, s, "t1", "i1", "i2")
	iv, err := s.Book(ctx, link.Token, BookInput{Start: monday.Add(10 * time.Hour)})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if iv.InterviewerID != "i2" {
		t.Fatalf("expected free interviewer i2, got %s", iv.InterviewerID)
	}
}

func TestBook_RejectsBadSlots(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1")
	saturday := monday.AddDate(0, 0, 5)

	cases := []struct {
		name  string
		start time.Time
		want  error
	}{
		{"weekend", saturday.Add(10 * time.Hour), ErrSlotUnavailable},
		{"before open", monday.Add(7 * time.Hour), ErrSlotUnavailable},
		{"spills past close", monday.Add(16*time.Hour + 30*time.Minute), ErrSlotUnavailable},
		{"off the hour grid", monday.Add(10*time.Hour + 17*time.Minute), ErrSlotUnavailable},
		{"in the past", time.Date(2020, 1, 6, 10, 0, 0, 0, time.UTC), ErrSlotUnavailable},
	}
	for _, tc := range cases {
		if _, err := s.Book(ctx, link.Token, BookInput{Start: tc.start}); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := s.Book(ctx, link.Token, BookInput{
		Start: monday.Add(10 * time.Hour), InterviewerID: "outsider",
	}); !errors.Is(err, ErrInterviewerNotOnLink) {
		t.Fatalf("outsider interviewer: %v", err)
	}

	// Failed attempts must leave the link ACTIVE.
	got, _ := repo.GetLinkByToken(ctx, db, link.Token)
	if got.Status != domain.LinkStatusActive {
		t.Fatalf("link status after rejections = %q", got.Status)
	}
}

func TestValidateSlotStart_BusinessHoursFit(t *testing.T) {
	now := monday.AddDate(0, 0, -3)
	four := monday.Add(16 * time.Hour)

	if err := validateSlotStart(four, time.Hour, now); err != nil {
		t.Fatalf("one-hour slot at 16:00 fits: %v", err)
	}
	if err := validateSlotStart(four, 2*time.Hour, now); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("two-hour slot at 16:00 spills past close: %v", err)
	}
	if err := validateSlotStart(monday.Add(10*time.Hour+30*time.Minute), time.Hour, now); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("off-grid start should be rejected: %v", err)
	}
}

func TestBook_ExpiredLink(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	ctx := context.Background()

	link := mustCreateLink(t, s, "t1", "i1")
	db.Model(&domain.SchedulingLink{}).Where("token = ?", link.Token).
		Update("expires_at", time.Now().UTC().Add(-time.Minute))

	if _, err := s.Book(ctx, link.Token, BookInput{Start: monday.Add(10 * time.Hour)}); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expired link booking: %v", err)
	}
}

func TestSuggestSlots_RankingAndCap(t *testing.T) {
	db := newServiceDB(t)
	seedInterviewer(t, db, "i1", "t1")
	s, _ := newSchedulingService(t, db)
	s.Calendars = &CalendarService{DB: db}
	ctx := context.Background()

	// Two weeks of weekdays for one interviewer: plenty of common slots.
	out, err := s.SuggestSlots(ctx, "t1", SuggestInput{
		InterviewerIDs:  []string{"i1"},
		DurationMinutes: 60,
		From:            monday,
		To:              monday.AddDate(0, 0, 14),
		PreferredDates:  []string{monday.AddDate(0, 0, 1).Format("2006-01-02")}, // Tuesday
	})
	if err != nil {
		t.Fatalf("SuggestSlots: %v", err)
	}
	if len(out) != maxSuggestions {
		t.Fatalf("expected capped list of %d, got %d", maxSuggestions, len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Fatalf("not sorted by score at %d", i)
		}
	}
	for _, sl := range out {
		if sl.Score < 0 || sl.Score > 100 {
			t.Fatalf("score out of range: %d", sl.Score)
		}
	}
	// Preferred Tuesday mid-morning should rank top: 50+15+10+20.
	best := out[0]
	if best.Start.Weekday() != time.Tuesday || (best.Start.Hour() != 10 && best.Start.Hour() != 11) {
		t.Fatalf("unexpected top slot: %v (score %d)", best.Start, best.Score)
	}

	if _, err := s.SuggestSlots(ctx, "t1", SuggestInput{
		InterviewerIDs: nil, DurationMinutes: 60, From: monday, To: monday.AddDate(0, 0, 1),
	}); !errors.Is(err, ErrInterviewerNotFound) {
		t.Fatalf("empty panel: %v", err)
	}
}
