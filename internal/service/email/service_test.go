package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

type stubProvider struct {
	sent []Message
	err  error
}

func (p *stubProvider) Send(ctx context.Context, msg Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestService(provider *stubProvider) *Service {
	return NewServiceWithProvider(&Config{
		FromEmail: "test@parkflow.io",
		FromName:  "ParkFlow Test",
		BaseURL:   "http://localhost:3000",
	}, provider, newTestLogger())
}

func TestDeliver_BookingConfirmed(t *testing.T) {
	// Arrange
	provider := &stubProvider{}
	service := newTestService(provider)

	// Act
	err := service.Deliver(context.Background(), domain.OutboundEmail{
		To:       "driver@example.com",
		Subject:  "Booking confirmed",
		Template: TemplateBookingConfirmed,
		Data: map[string]interface{}{
			"UserName":  "Asha",
			"BookingID": "booking-123",
			"SlotCode":  "B-12",
			"Amount":    "40.00",
			"Currency":  "INR",
			"QRImage":   "data:image/png;base64,AAAA",
		},
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("expected 1 email sent, got %d", len(provider.sent))
	}
	msg := provider.sent[0]
	for _, want := range []string{"Asha", "booking-123", "B-12", "Booking confirmed", "data:image/png;base64,AAAA", "http://localhost:3000"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("expected html to contain %q", want)
		}
	}
	if !strings.Contains(msg.Text, "SlotCode: B-12") {
		t.Errorf("expected text summary to list the slot, got %q", msg.Text)
	}
	if strings.Contains(msg.Text, "base64") {
		t.Error("text summary must not carry the QR image")
	}
}

func TestDeliver_PlainBody(t *testing.T) {
	provider := &stubProvider{}
	service := newTestService(provider)

	if err := service.Deliver(context.Background(), domain.OutboundEmail{To: "a@example.com", Body: "hello"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	msg := provider.sent[0]
	if msg.HTML != "" || msg.Text != "hello" {
		t.Errorf("expected a plain text message, got %+v", msg)
	}
	if msg.Subject != defaultSubject {
		t.Errorf("unexpected default subject %q", msg.Subject)
	}
}

func TestDeliver_Errors(t *testing.T) {
	service := newTestService(&stubProvider{})

	if err := service.Deliver(context.Background(), domain.OutboundEmail{Subject: "x"}); !errors.Is(err, errNoRecipient) {
		t.Errorf("expected missing recipient error, got %v", err)
	}
	err := service.Deliver(context.Background(), domain.OutboundEmail{To: "a@example.com", Template: "nonexistent"})
	if err == nil || !strings.Contains(err.Error(), "template not found") {
		t.Errorf("expected template not found, got %v", err)
	}

	failing := newTestService(&stubProvider{err: errors.New("SMTP connection failed")})
	err = failing.Deliver(context.Background(), domain.OutboundEmail{To: "a@example.com", Body: "x"})
	if err == nil || !strings.Contains(err.Error(), "SMTP connection failed") {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestRender_DoesNotMutateTaskData(t *testing.T) {
	service := newTestService(&stubProvider{})
	data := map[string]interface{}{"UserName": "Ravi", "QRImage": "data:image/png;base64,BBBB"}

	if _, err := service.Render(domain.OutboundEmail{To: "a@example.com", Template: TemplateSubscriptionActive, Data: data}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := data["BaseURL"]; ok {
		t.Error("render leaked layout fields into the task data")
	}
	if _, ok := data["QRImage"].(string); !ok {
		t.Error("render replaced the caller's QR image value")
	}
}

func TestAllTemplatesRender(t *testing.T) {
	service := newTestService(&stubProvider{})

	for name := range contentTemplates {
		msg, err := service.Render(domain.OutboundEmail{To: "a@example.com", Template: name, Data: map[string]interface{}{"UserName": "Test"}})
		if err != nil {
			t.Errorf("template %s: %v", name, err)
			continue
		}
		if !strings.Contains(msg.HTML, "Test") {
			t.Errorf("template %s: missing user name", name)
		}
	}
}

func TestNewService_ProviderSelection(t *testing.T) {
	if _, err := NewService(&Config{Provider: "carrier-pigeon"}, newTestLogger()); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewService(&Config{Provider: "sendgrid"}, newTestLogger()); err == nil {
		t.Error("expected error for missing SendGrid key")
	}
	if _, err := NewService(&Config{Provider: "sendgrid", SendGridAPIKey: "SG.test"}, newTestLogger()); err != nil {
		t.Errorf("expected sendgrid provider, got %v", err)
	}
	if _, err := NewService(nil, newTestLogger()); err != nil {
		t.Errorf("expected default smtp provider, got %v", err)
	}
}

func TestSMTPCompose(t *testing.T) {
	p := NewSMTPProvider("localhost", 1025, "", "", "noreply@parkflow.io", "ParkFlow", false)

	both, err := p.compose(Message{To: "a@example.com", Subject: "Hi", Text: "plain", HTML: "<p>rich</p>"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	s := string(both)
	for _, want := range []string{"From: ParkFlow <noreply@parkflow.io>", "multipart/alternative", "text/plain; charset=UTF-8", "text/html; charset=UTF-8", "plain", "<p>rich</p>"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}

	textOnly, err := p.compose(Message{To: "a@example.com", Subject: "Hi", Text: "plain"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(string(textOnly), "multipart") {
		t.Error("single body must not be multipart")
	}
}
