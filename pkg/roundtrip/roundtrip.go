// Package roundtrip drives one send/receive/verify/acknowledge sequence
// against a broker client and contains every failure inside a Result.
package roundtrip

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/queuediag/sessionprobe/pkg/broker"
)

// receiveWait bounds each receive attempt; an empty queue yields a failed
// result, never an indefinite block.
const receiveWait = 5 * time.Second

// Result is the outcome of one test path.
type Result struct {
	Name   string
	Passed bool
	Reason string
}

func (r Result) Status() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

// Factory opens the client a runner tests with. The sync and async paths
// differ only in the factory they are given.
type Factory func(ctx context.Context) (broker.Client, error)

type Runner interface {
	Run(ctx context.Context) Result
}

type Options struct {
	Queue     string
	SessionID string
	Count     int
	Logger    *zap.Logger
	Out       io.Writer
}

type runner struct {
	name    string
	prefix  string
	factory Factory
	opts    Options
}

// New - creation function for a round-trip runner. prefix tags the message
// bodies ("sync" or "async") so the two paths never verify each other's
// messages.
func New(name, prefix string, factory Factory, opts Options) Runner {
	if opts.Count < 1 {
		opts.Count = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &runner{name: name, prefix: prefix, factory: factory, opts: opts}
}

// Run executes the sequence and converts any failure into the Result. Errors
// never propagate to the caller; the aggregator only sees booleans.
func (r *runner) Run(ctx context.Context) Result {
	fmt.Fprintf(r.opts.Out, "--- %s ---\n", r.name)

	res := Result{Name: r.name}
	if err := r.execute(ctx); err != nil {
		res.Reason = err.Error()
		r.opts.Logger.Error("round trip failed",
			zap.String("test", r.name),
			zap.Error(err))
		fmt.Fprintf(r.opts.Out, "RESULT: FAIL - %s\n\n", err)
		return res
	}

	res.Passed = true
	fmt.Fprintf(r.opts.Out, "RESULT: PASS\n\n")
	return res
}

func (r *runner) execute(ctx context.Context) error {
	client, err := r.factory(ctx)
	if err != nil {
		return fmt.Errorf("open client: %w", err)
	}
	defer r.closeQuietly(client, "client")

	sender, err := client.NewSender(ctx, r.opts.Queue)
	if err != nil {
		return fmt.Errorf("open sender: %w", err)
	}
	defer r.closeQuietly(sender, "sender")

	receiver, err := client.NewReceiver(ctx, r.opts.Queue, r.opts.SessionID)
	if err != nil {
		return fmt.Errorf("open receiver: %w", err)
	}
	defer r.closeQuietly(receiver, "receiver")

	for i := 1; i <= r.opts.Count; i++ {
		body := r.body(i)
		if err := sender.Send(ctx, broker.Message{Body: body, SessionID: r.opts.SessionID}); err != nil {
			return fmt.Errorf("send '%s': %w", body, err)
		}

		msgs, err := receiver.Receive(ctx, 1, receiveWait)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if len(msgs) == 0 {
			return fmt.Errorf("no message received for '%s'", body)
		}
		if got := msgs[0].Body; got != body {
			return fmt.Errorf("body mismatch: sent '%s', got '%s'", body, got)
		}
		if err := receiver.Complete(ctx, msgs[0]); err != nil {
			return fmt.Errorf("complete '%s': %w", body, err)
		}
	}
	return nil
}

func (r *runner) body(i int) string {
	if r.opts.Count == 1 {
		return fmt.Sprintf("%s-%s", r.prefix, r.opts.SessionID)
	}
	return fmt.Sprintf("%s-%d", r.prefix, i)
}

func (r *runner) closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		r.opts.Logger.Warn("close failed",
			zap.String("what", what),
			zap.Error(err))
	}
}
