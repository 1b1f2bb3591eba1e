// Package email renders and sends the transactional emails of the parking
// lifecycle. Delivery is driven by the outbound worker; nothing here is on a
// request path.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

const (
	TemplateBookingConfirmed   = "booking_confirmed"
	TemplateBookingCheckedOut  = "booking_checked_out"
	TemplateBookingCancelled   = "booking_cancelled"
	TemplateBookingExpired     = "booking_expired"
	TemplateSubscriptionActive = "subscription_active"
)

const defaultSubject = "Notification from ParkFlow"

var errNoRecipient = errors.New("email has no recipient")

// Message is one rendered email. Either body may be empty.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Provider transmits a rendered message
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	// Provider is "sendgrid" or "smtp"
	Provider string

	FromEmail string
	FromName  string

	SendGridAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool

	// BaseURL is linked from every email footer
	BaseURL string
}

// DefaultConfig targets a local Mailhog
func DefaultConfig() *Config {
	return &Config{
		Provider:  "smtp",
		FromEmail: "noreply@parkflow.io",
		FromName:  "ParkFlow",
		SMTPHost:  "localhost",
		SMTPPort:  1025,
		BaseURL:   "http://localhost:3000",
	}
}

type Service struct {
	baseURL   string
	provider  Provider
	templates map[string]*template.Template
	log       *zap.Logger
}

func NewService(config *Config, log *zap.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var provider Provider
	switch config.Provider {
	case "sendgrid":
		if config.SendGridAPIKey == "" {
			return nil, errors.New("email: sendgrid API key is required")
		}
		provider = NewSendGridProvider(config.SendGridAPIKey, config.FromEmail, config.FromName)
	case "smtp":
		provider = NewSMTPProvider(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword,
			config.FromEmail, config.FromName, config.SMTPUseTLS)
	default:
		return nil, fmt.Errorf("email: unknown provider %q", config.Provider)
	}

	return NewServiceWithProvider(config, provider, log), nil
}

// NewServiceWithProvider wires an existing provider, mainly for tests
func NewServiceWithProvider(config *Config, provider Provider, log *zap.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	templates := make(map[string]*template.Template, len(contentTemplates))
	for name, body := range contentTemplates {
		templates[name] = template.Must(template.Must(template.New(name).Parse(layoutTemplate)).Parse(body))
	}
	return &Service{
		baseURL:   config.BaseURL,
		provider:  provider,
		templates: templates,
		log:       log,
	}
}

// Deliver renders an outbound email task and hands it to the provider
func (s *Service) Deliver(ctx context.Context, email domain.OutboundEmail) error {
	msg, err := s.Render(email)
	if err != nil {
		return err
	}

	if err := s.provider.Send(ctx, msg); err != nil {
		s.log.Error("Failed to send email",
			zap.String("to", msg.To),
			zap.String("template", email.Template),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("Email sent",
		zap.String("to", msg.To),
		zap.String("template", email.Template),
	)
	return nil
}

// Render builds the message for an outbound email. Templated emails carry
// the HTML body plus a plain-text summary of their data.
func (s *Service) Render(email domain.OutboundEmail) (Message, error) {
	if email.To == "" {
		return Message{}, errNoRecipient
	}
	msg := Message{To: email.To, Subject: email.Subject}
	if msg.Subject == "" {
		msg.Subject = defaultSubject
	}

	if email.Template == "" {
		msg.Text = email.Body
		return msg, nil
	}

	tmpl, ok := s.templates[email.Template]
	if !ok {
		return Message{}, fmt.Errorf("email: template not found: %s", email.Template)
	}

	data := make(map[string]interface{}, len(email.Data)+2)
	for k, v := range email.Data {
		data[k] = v
	}
	data["BaseURL"] = s.baseURL
	data["Subject"] = msg.Subject
	if img, ok := data["QRImage"].(string); ok {
		// produced by the QR codec
		data["QRImage"] = template.URL(img)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("email: render %s: %w", email.Template, err)
	}
	msg.HTML = buf.String()
	msg.Text = plainSummary(msg.Subject, email.Data)
	return msg, nil
}

// plainSummary lists the scalar fields of data in key order
func plainSummary(subject string, data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "QRImage" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(subject)
	b.WriteString("\n\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, data[k])
	}
	return b.String()
}
