package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type client struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// Open dials the broker and returns the synchronous client. Every operation
// on it is an ordinary blocking call.
func Open(url string, cfg Config) (Client, error) {
	conn, err := amqp.DialConfig(url, amqpConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &client{conn: conn, logger: cfg.logger()}, nil
}

func (c *client) NewSender(_ context.Context, queue string) (Sender, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open sender channel: %w", err)
	}
	return &sender{ch: ch, queue: queue}, nil
}

func (c *client) NewReceiver(_ context.Context, queue, sessionID string) (Receiver, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open receiver channel: %w", err)
	}
	deliveries, err := consume(ch, queue, sessionID)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &receiver{ch: ch, deliveries: deliveries, sessionID: sessionID, logger: c.logger}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}

func consume(ch *amqp.Channel, queue, sessionID string) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	tag := fmt.Sprintf("%s-%s", appID, sessionID)
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", queue, err)
	}
	return deliveries, nil
}

type sender struct {
	ch    *amqp.Channel
	queue string
}

func (s *sender) Send(ctx context.Context, msg Message) error {
	// Publish to the default exchange, routing key = queue name.
	return s.ch.PublishWithContext(ctx, "", s.queue, false, false, wrapPublishing(msg))
}

func (s *sender) Close() error {
	return s.ch.Close()
}

type receiver struct {
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	sessionID  string
	logger     *zap.Logger
}

func (r *receiver) Receive(ctx context.Context, max int, wait time.Duration) ([]ReceivedMessage, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	var out []ReceivedMessage
	for len(out) < max {
		select {
		case d, ok := <-r.deliveries:
			if !ok {
				return out, nil
			}
			if sid := sessionOf(d); sid != r.sessionID {
				// Another run's message, put it back for its owner.
				r.logger.Debug("requeueing foreign session message",
					zap.String("session", sid))
				if err := d.Nack(false, true); err != nil {
					return out, fmt.Errorf("requeue foreign message: %w", err)
				}
				continue
			}
			out = append(out, ReceivedMessage{
				Body:      string(d.Body),
				SessionID: r.sessionID,
				tag:       d.DeliveryTag,
				acker:     d.Acknowledger,
			})
		case <-deadline.C:
			return out, nil
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

func (r *receiver) Complete(_ context.Context, msg ReceivedMessage) error {
	if msg.acker == nil {
		return errors.New("message was not received by this client")
	}
	return msg.acker.Ack(msg.tag, false)
}

func (r *receiver) Close() error {
	return r.ch.Close()
}
