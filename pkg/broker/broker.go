// Package broker wraps the AMQP client library behind the narrow
// client/sender/receiver surface the round-trip tests drive. Two
// implementations exist: a synchronous one making blocking calls and an
// asynchronous one funnelling every network operation through a single
// ordered op loop.
package broker

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	appID         = "sessionprobe"
	sessionHeader = "session-id"
	prefetch      = 10
)

// Message is an outgoing message tagged with the run's session identifier.
type Message struct {
	Body      string
	SessionID string
}

// ReceivedMessage is a delivery accepted by a session-bound receiver. It must
// be completed exactly once after verification.
type ReceivedMessage struct {
	Body      string
	SessionID string

	tag   uint64
	acker amqp.Acknowledger
}

// Config carries the injectable pieces of client construction. Dial is the
// socket-configuration strategy; a nil Dial falls back to the library's own
// transport setup.
type Config struct {
	Dial   func(network, addr string) (net.Conn, error)
	Logger *zap.Logger
}

type Client interface {
	NewSender(ctx context.Context, queue string) (Sender, error)
	NewReceiver(ctx context.Context, queue, sessionID string) (Receiver, error)
	Close() error
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

type Receiver interface {
	// Receive waits up to wait for at most max messages belonging to the
	// receiver's session. A timeout yields an empty slice, not an error.
	Receive(ctx context.Context, max int, wait time.Duration) ([]ReceivedMessage, error)
	Complete(ctx context.Context, msg ReceivedMessage) error
	Close() error
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func amqpConfig(c Config) amqp.Config {
	return amqp.Config{
		Dial:       c.Dial,
		Properties: amqp.Table{"product": appID},
	}
}

// wrapPublishing - returns amqp publishing with msg inside, session id on both
// the correlation id and a header so either survives broker-side rewriting.
func wrapPublishing(msg Message) amqp.Publishing {
	return amqp.Publishing{
		Headers:       amqp.Table{sessionHeader: msg.SessionID},
		ContentType:   "text/plain",
		CorrelationId: msg.SessionID,
		MessageId:     uuid.NewString(),
		Timestamp:     time.Now(),
		AppId:         appID,
		Body:          []byte(msg.Body),
	}
}

func sessionOf(d amqp.Delivery) string {
	if d.CorrelationId != "" {
		return d.CorrelationId
	}
	if v, ok := d.Headers[sessionHeader].(string); ok {
		return v
	}
	return ""
}
