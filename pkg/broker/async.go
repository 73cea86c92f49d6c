package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var errClientClosed = errors.New("async client is closed")

// asyncClient is the asynchronous client variant. Every network operation is
// submitted to a single op goroutine and awaited through a context-guarded
// result channel, so operations run to completion one at a time with no
// overlap between them.
type asyncClient struct {
	conn      *amqp.Connection
	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// OpenAsync dials the broker and returns the asynchronous client.
func OpenAsync(url string, cfg Config) (Client, error) {
	conn, err := amqp.DialConfig(url, amqpConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c := newAsyncClient(conn, cfg.logger())
	return c, nil
}

func newAsyncClient(conn *amqp.Connection, logger *zap.Logger) *asyncClient {
	c := &asyncClient{
		conn:   conn,
		ops:    make(chan func()),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.loop()
	return c
}

func (c *asyncClient) loop() {
	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.done:
			return
		}
	}
}

// dispatch hands op to the loop without waiting for it to run.
func (c *asyncClient) dispatch(ctx context.Context, op func()) error {
	select {
	case c.ops <- op:
		return nil
	case <-c.done:
		return errClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit runs fn on the loop and waits for its error.
func (c *asyncClient) submit(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	if err := c.dispatch(ctx, func() { res <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *asyncClient) NewSender(ctx context.Context, queue string) (Sender, error) {
	var ch *amqp.Channel
	err := c.submit(ctx, func() error {
		var err error
		ch, err = c.conn.Channel()
		if err != nil {
			return fmt.Errorf("open sender channel: %w", err)
		}
		// Confirm mode, so each publish yields an awaitable confirmation.
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			return fmt.Errorf("confirm mode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &asyncSender{c: c, ch: ch, queue: queue}, nil
}

func (c *asyncClient) NewReceiver(ctx context.Context, queue, sessionID string) (Receiver, error) {
	var inner *receiver
	err := c.submit(ctx, func() error {
		ch, err := c.conn.Channel()
		if err != nil {
			return fmt.Errorf("open receiver channel: %w", err)
		}
		deliveries, err := consume(ch, queue, sessionID)
		if err != nil {
			ch.Close()
			return err
		}
		inner = &receiver{ch: ch, deliveries: deliveries, sessionID: sessionID, logger: c.logger}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &asyncReceiver{c: c, r: inner}, nil
}

func (c *asyncClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

type asyncSender struct {
	c     *asyncClient
	ch    *amqp.Channel
	queue string
}

func (s *asyncSender) Send(ctx context.Context, msg Message) error {
	return s.c.submit(ctx, func() error {
		dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, "", s.queue, false, false, wrapPublishing(msg))
		if err != nil {
			return err
		}
		select {
		case <-dc.Done():
			if !dc.Acked() {
				return fmt.Errorf("publish of %q was nacked by the broker", msg.Body)
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (s *asyncSender) Close() error {
	return s.c.submit(context.Background(), s.ch.Close)
}

type asyncReceiver struct {
	c *asyncClient
	r *receiver
}

func (ar *asyncReceiver) Receive(ctx context.Context, max int, wait time.Duration) ([]ReceivedMessage, error) {
	type result struct {
		msgs []ReceivedMessage
		err  error
	}
	res := make(chan result, 1)
	err := ar.c.dispatch(ctx, func() {
		msgs, err := ar.r.Receive(ctx, max, wait)
		res <- result{msgs: msgs, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case r := <-res:
		return r.msgs, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ar *asyncReceiver) Complete(ctx context.Context, msg ReceivedMessage) error {
	return ar.c.submit(ctx, func() error {
		return ar.r.Complete(ctx, msg)
	})
}

func (ar *asyncReceiver) Close() error {
	return ar.c.submit(context.Background(), ar.r.Close)
}
