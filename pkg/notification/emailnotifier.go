package notification

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

type EmailNotifier struct {
	SMTPConfig SMTPConfig
	Templates  map[NoticeType]NoticeTemplate
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig, templates map[NoticeType]NoticeTemplate) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	} else {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	slog.Info("Creating mail client", "host", config.Host, "port", config.Port, "tls", config.TLS)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	if templates == nil {
		templates = DefaultTemplates()
	}
	return &EmailNotifier{SMTPConfig: config, Templates: templates, client: client}, nil
}

func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}
	tmpl, ok := e.Templates[noticeType]
	if !ok {
		return fmt.Errorf("no template for notice type %s", noticeType)
	}

	textBody, err := renderText(tmpl.Text, notification.Data)
	if err != nil {
		slog.Error("Failed to render text template", "type", noticeType, "err", err)
		return err
	}
	htmlBody, err := renderHTML(tmpl.Html, notification.Data)
	if err != nil {
		slog.Error("Failed to render HTML template", "type", noticeType, "err", err)
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(notification.To); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(tmpl.Subject)

	if textBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, textBody)
	}
	if htmlBody != "" {
		if textBody != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
		} else {
			msg.SetBodyString(mail.TypeTextHTML, htmlBody)
		}
	}

	if err := e.client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send email", "type", noticeType, "err", err)
		return err
	}

	slog.Info("Email sent", "type", noticeType, "to", notification.To)
	return nil
}
