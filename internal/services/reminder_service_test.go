package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/rav4353/ayphen-scheduling/internal/domain"
	"github.com/rav4353/ayphen-scheduling/internal/notify"
	"github.com/rav4353/ayphen-scheduling/internal/repo"
)

// fakeSMS records sent messages.
type fakeSMS struct {
	mu   sync.Mutex
	sent []notify.SMS
}

func (f *fakeSMS) SendSMS(_ context.Context, msg notify.SMS) (*notify.SMSResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return &notify.SMSResult{Success: true}, nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func seedReminderFixture(t *testing.T, db *gorm.DB, smsEnabled bool) *domain.Interview {
	t.Helper()
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	if err := db.Create(&domain.TenantSettings{TenantID: "t1", SMSEnabled: smsEnabled}).Error; err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	iv := &domain.Interview{
		ApplicationID: "app-1", InterviewerID: "i1",
		ScheduledAt: time.Now().UTC().Add(3 * time.Hour), DurationMinutes: 60,
		Type: "VIDEO", Status: domain.InterviewStatusScheduled,
		MeetingLink: "https://meet/x",
	}
	if err := repo.CreateInterview(context.Background(), db, iv); err != nil {
		t.Fatalf("seed interview: %v", err)
	}
	return iv
}

func TestSweep_SendsAndMarks(t *testing.T) {
	db := newServiceDB(t)
	iv := seedReminderFixture(t, db, true)
	email := &fakeEmail{}
	sms := &fakeSMS{}
	s := &ReminderService{DB: db, Email: email, SMS: sms}
	ctx := context.Background()

	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}

	// Candidate and interviewer emails.
	if email.count() != 2 {
		t.Fatalf("expected 2 emails, got %d", email.count())
	}
	var toCandidate, toInterviewer bool
	for _, m := range email.sent {
		switch m.To {
		case "ada@x.com":
			toCandidate = true
			if !strings.Contains(m.HTML, "https://meet/x") {
				t.Fatal("candidate reminder missing meeting link")
			}
		case "i1@x.com":
			toInterviewer = true
		}
	}
	if !toCandidate || !toInterviewer {
		t.Fatalf("recipients wrong: %+v", email.sent)
	}

	if sms.count() != 1 || sms.sent[0].To != "+15551234" {
		t.Fatalf("sms = %+v", sms.sent)
	}

	got, _ := repo.GetInterview(ctx, db, iv.ID)
	if !got.ReminderSent {
		t.Fatal("reminder flag not set")
	}

	// Second sweep finds nothing.
	n, err = s.Sweep(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v", n, err)
	}
	if email.count() != 2 {
		t.Fatalf("second sweep re-sent reminders: %d", email.count())
	}
}

func TestSweep_SMSRespectsTenantToggle(t *testing.T) {
	db := newServiceDB(t)
	seedReminderFixture(t, db, false)
	sms := &fakeSMS{}
	s := &ReminderService{DB: db, Email: &fakeEmail{}, SMS: sms}

	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sms.count() != 0 {
		t.Fatalf("sms sent despite disabled toggle: %d", sms.count())
	}
}

func TestSweep_DeliveryFailureStillMarks(t *testing.T) {
	db := newServiceDB(t)
	iv := seedReminderFixture(t, db, false)
	s := &ReminderService{DB: db, Email: &fakeEmail{fail: true}}
	ctx := context.Background()

	n, err := s.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	got, _ := repo.GetInterview(ctx, db, iv.ID)
	if !got.ReminderSent {
		t.Fatal("flag must flip even when delivery fails")
	}
}

func TestSweep_WindowExcludesDistantInterviews(t *testing.T) {
	db := newServiceDB(t)
	seedApp(t, db, "app-1", "t1")
	seedInterviewer(t, db, "i1", "t1")
	far := &domain.Interview{
		ApplicationID: "app-1", InterviewerID: "i1",
		ScheduledAt: time.Now().UTC().Add(48 * time.Hour), DurationMinutes: 60,
		Type: "VIDEO", Status: domain.InterviewStatusScheduled,
	}
	if err := repo.CreateInterview(context.Background(), db, far); err != nil {
		t.Fatalf("seed: %v", err)
	}

	email := &fakeEmail{}
	s := &ReminderService{DB: db, Email: email}
	n, err := s.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if email.count() != 0 {
		t.Fatalf("distant interview reminded early: %d", email.count())
	}
}
