// Package notification delivers account emails: signup confirmation links
// and password recovery links.
package notification

import (
	"bytes"
	htmltemplate "html/template"
	"log/slog"
	"sync"
	texttemplate "text/template"
)

type NoticeType string

const (
	ConfirmSignupNotice NoticeType = "confirm_signup"
	RecoveryNotice      NoticeType = "recovery"
)

// NotificationData is a single message to deliver.
type NotificationData struct {
	To   string
	Data map[string]string
}

// NoticeTemplate holds subject and bodies for a notice type. Bodies are Go
// templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData) error
}

// DefaultTemplates returns the built-in templates. Each expects a "Link" key.
func DefaultTemplates() map[NoticeType]NoticeTemplate {
	return map[NoticeType]NoticeTemplate{
		ConfirmSignupNotice: {
			Subject: "Confirm your MoodMeter account",
			Text:    "Welcome to MoodMeter!\n\nConfirm your email address by opening this link:\n{{.Link}}\n",
			Html:    `<p>Welcome to MoodMeter!</p><p><a href="{{.Link}}">Confirm your email address</a></p>`,
		},
		RecoveryNotice: {
			Subject: "Reset your MoodMeter password",
			Text:    "Someone asked to reset your MoodMeter password.\n\nOpen this link to choose a new one:\n{{.Link}}\n\nIgnore this email if it was not you.\n",
			Html:    `<p>Someone asked to reset your MoodMeter password.</p><p><a href="{{.Link}}">Choose a new password</a></p><p>Ignore this email if it was not you.</p>`,
		},
	}
}

func renderText(tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := texttemplate.New("text").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := htmltemplate.New("html").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LogNotifier writes notices to the default logger instead of sending them.
// Used when no SMTP server is configured.
type LogNotifier struct{}

func (LogNotifier) Send(noticeType NoticeType, notification NotificationData) error {
	slog.Info("Notification (not sent)", "type", noticeType, "to", notification.To, "data", notification.Data)
	return nil
}

// RecordingNotifier keeps sent notices in memory.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []Recorded
}

type Recorded struct {
	Type NoticeType
	NotificationData
}

func (r *RecordingNotifier) Send(noticeType NoticeType, notification NotificationData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, Recorded{Type: noticeType, NotificationData: notification})
	return nil
}

// Last returns the most recent notice of the given type sent to addr.
func (r *RecordingNotifier) Last(noticeType NoticeType, addr string) (Recorded, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Sent) - 1; i >= 0; i-- {
		if r.Sent[i].Type == noticeType && r.Sent[i].To == addr {
			return r.Sent[i], true
		}
	}
	return Recorded{}, false
}
