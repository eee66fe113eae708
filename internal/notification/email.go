package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/reminder"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

var raisedTemplate = template.Must(template.New("raised").Parse(`
Alerta ambiental ({{.Severity}})
================================

Estufa: {{.TentID}}
Fase: {{.Phase}}, semana {{.Week}}
Métrica: {{.Metric}}
Valor medido: {{.Value}}
Valor ideal: {{.Ideal}} (margem {{.Margin}})
Alerta: {{.AlertID}}

{{.Message}}

Registrado em {{.RaisedAt.Format "02/01/2006 15:04"}}.

---
Cultivo
`))

var resolvedTemplate = template.Must(template.New("resolved").Parse(`
Alerta resolvido
================

Estufa: {{.TentID}}
Métrica: {{.Metric}}
Valor medido: {{.Value}}
Alerta: {{.AlertID}}

A métrica voltou para a faixa ideal.

---
Cultivo
`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`
{{.Title}}

{{.Body}}
{{if .RequireInteraction}}
Esta notificação exige sua atenção.
{{end}}
---
Cultivo
`))

// SendFunc delivers a composed message. It matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier delivers alert and reminder notifications by email
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *zap.Logger
	send   SendFunc
	now    func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		config: cfg,
		logger: logger,
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// WithSender replaces the SMTP delivery function
func (e *EmailNotifier) WithSender(send SendFunc) *EmailNotifier {
	e.send = send
	return e
}

// SendAlertNotification sends an email for a raised or resolved alert
func (e *EmailNotifier) SendAlertNotification(ctx context.Context, n *protocol.AlertNotification) error {
	var (
		subject string
		tmpl    *template.Template
	)

	switch n.Type {
	case protocol.AlertTypeRaised:
		subject = fmt.Sprintf("🚨 Alerta %s - Estufa %d (%s)", n.Severity, n.TentID, n.Metric)
		tmpl = raisedTemplate
	case protocol.AlertTypeResolved:
		subject = fmt.Sprintf("✅ Alerta resolvido - Estufa %d (%s)", n.TentID, n.Metric)
		tmpl = resolvedTemplate
	default:
		return fmt.Errorf("unknown notification type: %s", n.Type)
	}

	body, err := render(tmpl, n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return e.sendEmail(ctx, subject, body)
}

// ShowNotification delivers a reminder notification
func (e *EmailNotifier) ShowNotification(ctx context.Context, n reminder.Notification) error {
	body, err := render(reminderTemplate, n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return e.sendEmail(ctx, n.Title, body)
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.config.Enabled() {
		e.logger.Info("SMTP not configured, skipping email",
			zap.String("subject", subject),
			zap.String("body", body))
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", e.now().Format(time.RFC1123Z))
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("email sent", zap.String("subject", subject))
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if !e.config.Enabled() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	e.logger.Info("SMTP connection test successful", zap.String("addr", addr))
	return nil
}
