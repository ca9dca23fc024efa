package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPOptions configures SMTPNotifier.
type SMTPOptions struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails completion notices.
type SMTPNotifier struct {
	opts SMTPOptions
	send sendFunc
}

func NewSMTPNotifier(opts SMTPOptions) *SMTPNotifier {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &SMTPNotifier{opts: opts, send: smtp.SendMail}
}

func (s *SMTPNotifier) JobCompleted(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(n.Email) == "" {
		return fmt.Errorf("notify: job %s has no recipient", n.JobID)
	}
	subject, body := Message(n, s.opts.FrontendURL)
	msg := buildMessage(s.opts.From, n.Email, subject, body, time.Now())

	var auth smtp.Auth
	if s.opts.Username != "" {
		auth = smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	if err := s.send(addr, auth, s.opts.From, []string{n.Email}, msg); err != nil {
		return fmt.Errorf("notify: send to %s: %w", n.Email, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + at.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

var _ Notifier = (*SMTPNotifier)(nil)
