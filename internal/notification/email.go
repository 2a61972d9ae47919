// Package notification sends best-effort email notices about scheduling
// decisions. When SMTP is not configured the notices are logged and dropped.
package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type EmailNotifier struct {
	config SMTPConfig
}

func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

var overrideTmpl = template.Must(template.New("override").Parse(`
Thermostat Override Scheduled
=============================

Account: {{.AccountID}}
Mode: {{if .Away}}AWAY{{else}}HOME{{end}}
Automatic scheduling resumes at: {{.Until}}

Calendar-driven automation is paused until the override expires.

---
Thermostat Away Scheduler
`))

var preheatTmpl = template.Must(template.New("preheat").Parse(`
Preheat Started
===============

Account: {{.AccountID}}
Event: {{.Title}}

The thermostat has been set to the pre-arrival comfort target ahead of
your expected return.

---
Thermostat Away Scheduler
`))

// OverrideScheduled announces a new user override and when it lapses.
func (e *EmailNotifier) OverrideScheduled(accountID int, away bool, until time.Time) error {
	mode := "HOME"
	if away {
		mode = "AWAY"
	}
	subject := fmt.Sprintf("Thermostat override: %s until %s", mode, until.Format(time.RFC1123))

	var buf bytes.Buffer
	err := overrideTmpl.Execute(&buf, struct {
		AccountID int
		Away      bool
		Until     string
	}{accountID, away, until.Format(time.RFC1123)})
	if err != nil {
		return fmt.Errorf("render override notice: %w", err)
	}
	return e.send(subject, buf.String())
}

// PreheatFired announces that preheating began for an upcoming return.
func (e *EmailNotifier) PreheatFired(accountID int, title string) error {
	subject := fmt.Sprintf("Preheating for: %s", title)

	var buf bytes.Buffer
	err := preheatTmpl.Execute(&buf, struct {
		AccountID int
		Title     string
	}{accountID, title})
	if err != nil {
		return fmt.Errorf("render preheat notice: %w", err)
	}
	return e.send(subject, buf.String())
}

func (e *EmailNotifier) send(subject, body string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
