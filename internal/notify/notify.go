// Package notify sends best-effort job notifications. Nothing here may
// influence job state: every failure is logged and dropped.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"productsnap/internal/domain"
)

// Notice describes a finished job.
type Notice struct {
	JobID    string
	Mode     domain.JobMode
	Email    string
	UserName string
}

// Notifier delivers notices.
type Notifier interface {
	JobCompleted(ctx context.Context, n Notice) error
}

var titler = cases.Title(language.English)

// ModeTitle turns "studio_white" into "Studio White".
func ModeTitle(mode domain.JobMode) string {
	return titler.String(strings.ReplaceAll(string(mode), "_", " "))
}

// JobURL links to the job in the web app library.
func JobURL(frontendURL, jobID string) string {
	return strings.TrimRight(frontendURL, "/") + "/library?job=" + url.QueryEscape(jobID)
}

// Message renders the subject and plain-text body of a completion notice.
func Message(n Notice, frontendURL string) (subject, body string) {
	greeting := "Hi,"
	if name := strings.TrimSpace(n.UserName); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	subject = "Your ProductSnap generation is complete!"
	body = strings.Join([]string{
		"Your product shot is ready!",
		"",
		greeting,
		"",
		fmt.Sprintf("Great news! Your %s generation has completed successfully.", ModeTitle(n.Mode)),
		"",
		"View your result: " + JobURL(frontendURL, n.JobID),
		"",
	}, "\r\n")
	return subject, body
}
