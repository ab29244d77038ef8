package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPSender delivers email through a plain SMTP relay with optional
// PLAIN auth. It implements EmailSender.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// send is swappable in tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender wires an SMTPSender from config values.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		send:     smtp.SendMail,
	}
}

// SendEmail builds a MIME message (HTML body plus optional text/calendar
// attachment) and hands it to the relay. ctx cancellation is honored before
// dialing; net/smtp itself does not take a context.
func (s *SMTPSender) SendEmail(ctx context.Context, msg Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("notify: email has no recipient")
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	body := buildMIME(s.From, msg)
	if err := s.send(addr, auth, s.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("notify: smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// buildMIME renders the wire message. Without an attachment it is a single
// text/html part; with one it becomes multipart/mixed with the invite
// base64-encoded as text/calendar.
func buildMIME(from string, msg Email) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachment) == 0 {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(msg.HTML)
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	const boundary = "ayphen-mime-boundary"
	b.WriteString("Content-Type: multipart/mixed; boundary=" + boundary + "\r\n")
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")

	name := msg.AttachmentName
	if name == "" {
		name = "invite.ics"
	}
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/calendar; method=REQUEST; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("Content-Disposition: attachment; filename=" + name + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(wrap76(base64.StdEncoding.EncodeToString(msg.Attachment)))
	b.WriteString("\r\n")

	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}

// wrap76 folds base64 output at the 76-column limit RFC 2045 sets for
// transfer-encoded bodies.
func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}
