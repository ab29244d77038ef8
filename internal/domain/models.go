// Package domain defines the persistence models for scheduling links,
// interviews, and calendar integration records. These types are mapped with
// GORM and form the core data layer of the scheduling service.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// LinkStatus is the lifecycle state of a scheduling link.
//
// Valid transitions: ACTIVE → BOOKED (candidate booked a slot) and
// ACTIVE → CANCELLED (recruiter cancelled the link). BOOKED and CANCELLED
// are terminal.
type LinkStatus string

const (
	LinkStatusActive    LinkStatus = "ACTIVE"
	LinkStatusBooked    LinkStatus = "BOOKED"
	LinkStatusCancelled LinkStatus = "CANCELLED"
)

// Interview statuses.
const (
	InterviewStatusScheduled = "SCHEDULED"
	InterviewStatusCompleted = "COMPLETED"
	InterviewStatusCancelled = "CANCELLED"
)

// CalendarProvider identifies an external calendar backend.
type CalendarProvider string

const (
	ProviderGoogle  CalendarProvider = "GOOGLE"
	ProviderOutlook CalendarProvider = "OUTLOOK"
)

// SchedulingLink is a tokenized, time-bounded invitation letting a candidate
// pick their own interview slot. The token is the primary key; uniqueness is
// enforced at the storage layer. The row itself is mutable (status enum plus
// updated-at); every transition is additionally recorded in the append-only
// link_events history table.
//
// Fields:
//   - Token: opaque collision-resistant identifier, also the public URL part.
//   - TenantID: owning tenant; all reads must be scoped by it. A token from
//     another tenant resolves as not-found, never as a permission error.
//   - InterviewerIDs: comma-separated interviewer user IDs eligible to host.
//   - CandidateName/CandidateEmail/JobTitle: denormalized from the
//     application at creation time so the public endpoints need no joins.
//   - InterviewID: set when the link transitions to BOOKED.
type SchedulingLink struct {
	Token           string     `json:"token"            gorm:"type:varchar(64);primaryKey"`
	TenantID        string     `json:"-"                gorm:"type:char(36);not null;index:idx_tenant_links"`
	ApplicationID   string     `json:"application_id"   gorm:"type:char(36);not null;index"`
	CandidateID     string     `json:"candidate_id"     gorm:"type:char(36);not null"`
	CandidateName   string     `json:"candidate_name"   gorm:"type:varchar(255);not null"`
	CandidateEmail  string     `json:"candidate_email"  gorm:"type:varchar(255);not null"`
	JobTitle        string     `json:"job_title"        gorm:"type:varchar(255);not null"`
	InterviewerIDs  string     `json:"-"                gorm:"type:text;not null"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null;default:60"`
	InterviewType   string     `json:"interview_type"   gorm:"type:varchar(64);not null"`
	Instructions    string     `json:"instructions,omitempty" gorm:"type:text"`
	Status          LinkStatus `json:"status"           gorm:"type:varchar(16);not null;default:'ACTIVE';index"`
	ExpiresAt       time.Time  `json:"expires_at"       gorm:"not null"`
	InterviewID     *string    `json:"interview_id,omitempty" gorm:"type:char(36)"`
	CreatedBy       string     `json:"-"                gorm:"type:char(36);not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SchedulingLink.
func (SchedulingLink) TableName() string { return "scheduling_links" }

// Interviewers splits the stored CSV into individual interviewer IDs.
func (l SchedulingLink) Interviewers() []string {
	if l.InterviewerIDs == "" {
		return nil
	}
	parts := strings.Split(l.InterviewerIDs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HasInterviewer reports whether id is one of the link's candidate interviewers.
func (l SchedulingLink) HasInterviewer(id string) bool {
	for _, v := range l.Interviewers() {
		if v == id {
			return true
		}
	}
	return false
}

// LinkEvent is one append-only history record for a scheduling link. Rows are
// only ever inserted; the current state lives on the SchedulingLink row.
type LinkEvent struct {
	ID        uint       `json:"id"       gorm:"primaryKey;autoIncrement"`
	Token     string     `json:"token"    gorm:"type:varchar(64);not null;index:idx_link_events_token"`
	Status    LinkStatus `json:"status"   gorm:"type:varchar(16);not null"`
	ActorID   string     `json:"actor_id,omitempty" gorm:"type:char(36)"`
	Note      string     `json:"note,omitempty"     gorm:"type:varchar(255)"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for LinkEvent.
func (LinkEvent) TableName() string { return "link_events" }

// Interview is a scheduled meeting between one interviewer and the candidate
// behind an application. Created either by direct scheduling or by a
// self-scheduling link booking.
//
// ReminderSent flips exactly once, false → true, by the reminder sweep and is
// never reset by normal flow. A reschedule keeps the flag as-is.
type Interview struct {
	ID              string         `json:"id"               gorm:"type:char(36);primaryKey"`
	ApplicationID   string         `json:"application_id"   gorm:"type:char(36);not null;index"`
	InterviewerID   string         `json:"interviewer_id"   gorm:"type:char(36);not null;index:idx_interviewer_time,priority:1"`
	ScheduledAt     time.Time      `json:"scheduled_at"     gorm:"not null;index:idx_interviewer_time,priority:2"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null;default:60"`
	Type            string         `json:"type"             gorm:"type:varchar(64);not null"`
	Status          string         `json:"status"           gorm:"type:varchar(16);not null;default:'SCHEDULED';index"`
	Location        string         `json:"location,omitempty"     gorm:"type:varchar(255)"`
	MeetingLink     string         `json:"meeting_link,omitempty" gorm:"type:varchar(512)"`
	ReminderSent    bool           `json:"reminder_sent"    gorm:"not null;default:false;index"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Interview.
func (Interview) TableName() string { return "interviews" }

// EndsAt returns the interview end time derived from its duration.
func (i Interview) EndsAt() time.Time {
	return i.ScheduledAt.Add(time.Duration(i.DurationMinutes) * time.Minute)
}

// CalendarConnection is a per-user OAuth credential record for an external
// calendar. One row per (user, provider). Tokens are rotated in place when
// refreshed; the service refreshes eagerly when TokenExpiresAt is within a
// five-minute buffer of now.
type CalendarConnection struct {
	ID             string           `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID         string           `json:"user_id"  gorm:"type:char(36);not null;index;uniqueIndex:ux_conn_user_provider"`
	Provider       CalendarProvider `json:"provider" gorm:"type:varchar(16);not null;uniqueIndex:ux_conn_user_provider"`
	AccessToken    string           `json:"-"        gorm:"type:text;not null"`
	RefreshToken   string           `json:"-"        gorm:"type:text"`
	TokenExpiresAt time.Time        `json:"-"`
	Email          string           `json:"email"    gorm:"type:varchar(255)"`
	CalendarID     string           `json:"-"        gorm:"type:varchar(255)"`
	IsActive       bool             `json:"is_active" gorm:"not null;default:true"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName returns the database table name for CalendarConnection.
func (CalendarConnection) TableName() string { return "calendar_connections" }

// CalendarEvent is the local record of a meeting. ExternalID is set when the
// event was mirrored to a provider; a nil ExternalID means the sync was
// skipped or failed and the event exists locally only. Local state is the
// source of truth; external sync is best-effort.
type CalendarEvent struct {
	ID          string           `json:"id"          gorm:"type:char(36);primaryKey"`
	ExternalID  string           `json:"external_id,omitempty" gorm:"type:varchar(255)"`
	Provider    CalendarProvider `json:"provider"    gorm:"type:varchar(16);not null"`
	Title       string           `json:"title"       gorm:"type:varchar(255);not null"`
	Description string           `json:"description,omitempty" gorm:"type:text"`
	StartTime   time.Time        `json:"start_time"  gorm:"not null"`
	EndTime     time.Time        `json:"end_time"    gorm:"not null"`
	Location    string           `json:"location,omitempty"     gorm:"type:varchar(255)"`
	MeetingLink string           `json:"meeting_link,omitempty" gorm:"type:varchar(512)"`
	Attendees   string           `json:"-"           gorm:"type:text"`
	UserID      string           `json:"user_id"     gorm:"type:char(36);not null;index"`
	InterviewID *string          `json:"interview_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName returns the database table name for CalendarEvent.
func (CalendarEvent) TableName() string { return "calendar_events" }

// Application is the minimal slice of an ATS application needed for tenant
// ownership checks and candidate contact details on reminders.
type Application struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	TenantID       string    `json:"-"               gorm:"type:char(36);not null;index"`
	CandidateID    string    `json:"candidate_id"    gorm:"type:char(36);not null"`
	CandidateName  string    `json:"candidate_name"  gorm:"type:varchar(255);not null"`
	CandidateEmail string    `json:"candidate_email" gorm:"type:varchar(255);not null"`
	CandidatePhone string    `json:"candidate_phone,omitempty" gorm:"type:varchar(32)"`
	JobTitle       string    `json:"job_title"       gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string { return "applications" }

// Interviewer is the minimal slice of a tenant user needed for slot
// generation, booking validation, and reminder dispatch.
type Interviewer struct {
	ID        string    `json:"id"    gorm:"type:char(36);primaryKey"`
	TenantID  string    `json:"-"     gorm:"type:char(36);not null;index"`
	Name      string    `json:"name"  gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(32)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Interviewer.
func (Interviewer) TableName() string { return "interviewers" }

// ProviderConfig holds a tenant's OAuth client credentials for one calendar
// provider. Absence means the provider is not configured for that tenant.
type ProviderConfig struct {
	ID           uint             `json:"id"        gorm:"primaryKey;autoIncrement"`
	TenantID     string           `json:"-"         gorm:"type:char(36);not null;uniqueIndex:ux_provider_cfg"`
	Provider     CalendarProvider `json:"provider"  gorm:"type:varchar(16);not null;uniqueIndex:ux_provider_cfg"`
	ClientID     string           `json:"client_id" gorm:"type:varchar(255);not null"`
	ClientSecret string           `json:"-"         gorm:"type:varchar(255);not null"`
	RedirectURI  string           `json:"redirect_uri,omitempty" gorm:"type:varchar(512)"`
	AuthTenant   string           `json:"-"         gorm:"type:varchar(64)"` // Microsoft directory tenant, "common" by default
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TableName returns the database table name for ProviderConfig.
func (ProviderConfig) TableName() string { return "provider_configs" }

// TenantSettings carries the per-tenant toggles the scheduling flow consults.
type TenantSettings struct {
	TenantID   string    `json:"tenant_id" gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name"      gorm:"type:varchar(255)"`
	SMSEnabled bool      `json:"sms_enabled" gorm:"not null;default:false"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for TenantSettings.
func (TenantSettings) TableName() string { return "tenant_settings" }
