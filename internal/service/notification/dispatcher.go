package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/queue"
	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
)

// Dispatcher implements ports.Notifier by publishing outbound tasks to the
// message queue. Publishing does not wait for delivery.
type Dispatcher struct {
	mq  queue.MessageQueue
	now func() time.Time
	log *zap.Logger
}

func NewDispatcher(mq queue.MessageQueue, log *zap.Logger) *Dispatcher {
	return &Dispatcher{mq: mq, now: time.Now, log: log}
}

func (d *Dispatcher) SendEmail(ctx context.Context, email domain.OutboundEmail) error {
	return d.publish(queue.SubjectEmail, "email", email)
}

func (d *Dispatcher) TriggerWebhook(ctx context.Context, event string, payload map[string]interface{}) error {
	return d.publish(queue.SubjectWebhook, "webhook", domain.OutboundWebhook{
		Event:      event,
		Payload:    payload,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) publish(subject, kind string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s task: %w", kind, err)
	}
	if err := d.mq.Publish(subject, data); err != nil {
		telemetry.OutboundTasksTotal.WithLabelValues(kind, "enqueue_failed").Inc()
		d.log.Error("Failed to enqueue outbound task", zap.String("kind", kind), zap.Error(err))
		return err
	}
	telemetry.OutboundTasksTotal.WithLabelValues(kind, "enqueued").Inc()
	return nil
}
