package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"authmedia/internal/logging"
	"authmedia/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateVerification    = "verification"
	TemplatePasswordReset   = "password_reset"
	TemplatePasswordChanged = "password_changed"
)

var subjects = map[string]string{
	TemplateVerification:    "Verify Your Email Address",
	TemplatePasswordReset:   "Reset Your Password",
	TemplatePasswordChanged: "Password Changed Successfully",
}

type templateData struct {
	AppName   string
	Name      string
	URL       string
	ChangedAt string
	Year      int
}

// Notifier renders the transactional templates and hands them to a Sender.
type Notifier struct {
	sender  Sender
	baseURL string
	appName string
	tmpl    *template.Template
	logger  logging.Logger
	now     func() time.Time
}

// NewNotifier parses the embedded templates.
func NewNotifier(sender Sender, baseURL, appName string, logger logging.Logger) (*Notifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Notifier{
		sender:  sender,
		baseURL: baseURL,
		appName: appName,
		tmpl:    tmpl,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// SendVerification mails the email verification link.
func (n *Notifier) SendVerification(ctx context.Context, email, name, token string) error {
	return n.send(ctx, TemplateVerification, email, templateData{
		Name: name,
		URL:  n.link("/verify-email.html", token),
	})
}

// SendPasswordReset mails the password reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, name, token string) error {
	return n.send(ctx, TemplatePasswordReset, email, templateData{
		Name: name,
		URL:  n.link("/reset-password.html", token),
	})
}

// SendPasswordChanged confirms a completed password change.
func (n *Notifier) SendPasswordChanged(ctx context.Context, email, name string) error {
	return n.send(ctx, TemplatePasswordChanged, email, templateData{
		Name:      name,
		ChangedAt: n.now().UTC().Format("January 2, 2006 at 15:04 UTC"),
	})
}

func (n *Notifier) link(path, token string) string {
	return n.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (n *Notifier) send(ctx context.Context, name, to string, data templateData) error {
	data.AppName = n.appName
	data.Year = n.now().Year()

	var buf bytes.Buffer
	if err := n.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		metrics.Emails.WithLabelValues(name, metrics.ResultFailure).Inc()
		return fmt.Errorf("render %s email: %w", name, err)
	}

	err := n.sender.Send(ctx, Message{To: to, Subject: subjects[name], HTML: buf.String()})
	metrics.Emails.WithLabelValues(name, metrics.Result(err)).Inc()
	if err != nil {
		n.logger.Error(ctx, "email send failed", "template", name, "to", to, "error", err)
		return err
	}
	n.logger.Info(ctx, "email sent", "template", name, "to", to)
	return nil
}
