// Package notify delivers candidate and interviewer notifications over email
// (SMTP) and SMS (tenant-configured webhook).
//
// Delivery here is best effort by contract: callers in the scheduling and
// reminder paths log failures and keep going, because a lost notification must
// never roll back a booked interview or wedge the reminder sweep.
package notify

import "context"

// Email is one outbound message. HTML is the body; Attachment, when present,
// rides along as a calendar invite (text/calendar).
type Email struct {
	To      string
	Subject string
	HTML    string

	// AttachmentName and Attachment carry an optional .ics invite.
	AttachmentName string
	Attachment     []byte
}

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) error
}

// SMS is one outbound text message.
type SMS struct {
	To          string
	Body        string
	TenantID    string
	CandidateID string
}

// SMSResult reports per-message delivery outcome from the webhook.
type SMSResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SMSSender sends a single SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMS) (*SMSResult, error)
}
