package queue

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const rabbitExchange = "parkflow.outbound"

// RabbitMQQueue implements the MessageQueue interface using RabbitMQ. Every
// subject maps to a durable queue shared by all instances of the consumer
// group, so a task is delivered to one consumer.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	group    string
	handlers map[string]func([]byte) error
	mu       sync.RWMutex
	closed   bool
	log      *zap.Logger
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(url, group string, log *zap.Logger) (MessageQueue, error) {
	conn, ch, err := dialRabbit(url)
	if err != nil {
		return nil, err
	}

	q := &RabbitMQQueue{
		conn:     conn,
		channel:  ch,
		url:      url,
		group:    group,
		handlers: make(map[string]func([]byte) error),
		log:      log,
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("group", group))
	return q, nil
}

func dialRabbit(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := ch.ExchangeDeclare(rabbitExchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	return conn, ch, nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.Publish(
		rabbitExchange, subject, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         data,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}
	if err := q.consume(q.channel, subject, handler); err != nil {
		return err
	}
	q.handlers[subject] = handler

	q.log.Info("Subscribed to RabbitMQ queue", zap.String("subject", subject), zap.String("group", q.group))
	return nil
}

func (q *RabbitMQQueue) consume(ch *amqp.Channel, subject string, handler func([]byte) error) error {
	name := subject + "." + q.group
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(name, subject, rabbitExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("subject", subject),
					zap.Error(err),
				)
			}
			// best-effort tasks are not redelivered after a failure
			_ = msg.Ack(false)
		}
	}()
	return nil
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// monitorConnection redials after the broker drops the connection and
// re-attaches every subscription. It returns once Close has been called.
func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
		if !ok || reason == nil {
			return
		}
		q.log.Warn("RabbitMQ connection lost, reconnecting", zap.String("reason", reason.Reason))

		if !q.reconnect() {
			return
		}
	}
}

func (q *RabbitMQQueue) reconnect() bool {
	wait := time.Second
	for attempt := 1; ; attempt++ {
		time.Sleep(wait)
		if wait < 30*time.Second {
			wait *= 2
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return false
		}
		conn, ch, err := dialRabbit(q.url)
		if err != nil {
			q.mu.Unlock()
			q.log.Error("RabbitMQ reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		q.conn, q.channel = conn, ch
		for subject, handler := range q.handlers {
			if err := q.consume(ch, subject, handler); err != nil {
				q.log.Error("Failed to resubscribe", zap.String("subject", subject), zap.Error(err))
			}
		}
		q.mu.Unlock()

		q.log.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return true
	}
}
