package notification

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/queue"
	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
)

// EmailDeliverer sends one outbound email
type EmailDeliverer interface {
	Deliver(ctx context.Context, email domain.OutboundEmail) error
}

// WebhookSender posts one outbound webhook
type WebhookSender interface {
	Send(ctx context.Context, hook domain.OutboundWebhook) error
}

// Worker consumes outbound tasks from the queue. A failed task is logged and
// acknowledged; delivery is best-effort.
type Worker struct {
	mq      queue.MessageQueue
	email   EmailDeliverer
	webhook WebhookSender
	timeout time.Duration
	log     *zap.Logger
}

func NewWorker(mq queue.MessageQueue, email EmailDeliverer, webhook WebhookSender, log *zap.Logger) *Worker {
	return &Worker{
		mq:      mq,
		email:   email,
		webhook: webhook,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// Start subscribes to the outbound subjects
func (w *Worker) Start() error {
	if err := w.mq.Subscribe(queue.SubjectEmail, w.handleEmail); err != nil {
		return err
	}
	return w.mq.Subscribe(queue.SubjectWebhook, w.handleWebhook)
}

func (w *Worker) handleEmail(data []byte) error {
	var email domain.OutboundEmail
	if err := json.Unmarshal(data, &email); err != nil {
		w.log.Error("Dropping malformed email task", zap.Error(err))
		telemetry.OutboundTasksTotal.WithLabelValues("email", "malformed").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.email.Deliver(ctx, email); err != nil {
		w.log.Error("Failed to deliver email",
			zap.String("to", email.To),
			zap.String("template", email.Template),
			zap.Error(err),
		)
		telemetry.OutboundTasksTotal.WithLabelValues("email", "failed").Inc()
		return nil
	}
	telemetry.OutboundTasksTotal.WithLabelValues("email", "delivered").Inc()
	return nil
}

func (w *Worker) handleWebhook(data []byte) error {
	var hook domain.OutboundWebhook
	if err := json.Unmarshal(data, &hook); err != nil {
		w.log.Error("Dropping malformed webhook task", zap.Error(err))
		telemetry.OutboundTasksTotal.WithLabelValues("webhook", "malformed").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.webhook.Send(ctx, hook); err != nil {
		telemetry.OutboundTasksTotal.WithLabelValues("webhook", "failed").Inc()
		return nil
	}
	telemetry.OutboundTasksTotal.WithLabelValues("webhook", "delivered").Inc()
	return nil
}
