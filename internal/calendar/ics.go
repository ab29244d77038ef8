package calendar

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const icsTimeLayout = "20060102T150405Z"

// ICSInvite describes one event for an iCalendar attachment.
type ICSInvite struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Organizer   string // email, optional
	Attendees   []string
}

// BuildICS renders a single-event VCALENDAR suitable for email attachment.
// Lines are CRLF-joined per RFC 5545 and the UID is random so repeated sends
// never collide in the recipient's calendar.
func BuildICS(inv ICSInvite) string {
	uid := fmt.Sprintf("%s@ayphen-scheduling", randomHex(16))
	now := time.Now().UTC().Format(icsTimeLayout)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Ayphen//Interview Scheduling//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + now,
		"DTSTART:" + inv.Start.UTC().Format(icsTimeLayout),
		"DTEND:" + inv.End.UTC().Format(icsTimeLayout),
		"SUMMARY:" + escapeICS(inv.Title),
	}
	if inv.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICS(inv.Description))
	}
	if inv.Location != "" {
		lines = append(lines, "LOCATION:"+escapeICS(inv.Location))
	}
	if inv.Organizer != "" {
		lines = append(lines, "ORGANIZER:mailto:"+inv.Organizer)
	}
	for _, a := range inv.Attendees {
		lines = append(lines, "ATTENDEE;RSVP=TRUE:mailto:"+a)
	}
	lines = append(lines,
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	return strings.Join(lines, "\r\n") + "\r\n"
}

// escapeICS escapes the characters RFC 5545 reserves in text values.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process is in a bad state; fall back
		// to a time-derived UID rather than panic in a mail path.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
