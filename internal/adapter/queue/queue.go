package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// Subjects of the best-effort outbound tasks
const (
	SubjectEmail   = "parkflow.outbound.email"
	SubjectWebhook = "parkflow.outbound.webhook"
)

// MessageQueue defines the interface for a message queue adapter. Each
// message is handled by one subscriber of the configured consumer group.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New connects to the queue selected by driver ("nats" or "rabbitmq")
func New(driver, url, group string, log *zap.Logger) (MessageQueue, error) {
	switch driver {
	case "", "nats":
		return NewNATSQueue(url, group, log)
	case "rabbitmq":
		return NewRabbitMQQueue(url, group, log)
	default:
		return nil, fmt.Errorf("unknown queue driver: %s", driver)
	}
}
