// Package sockopt configures TCP options on the connection the AMQP client
// dials. The applier is injected into client construction, so tolerating the
// container-specific setsockopt failures is a per-run choice instead of a
// global mutation of the SDK.
package sockopt

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const dialTimeout = 30 * time.Second

// Option is a single socket option applied right after connect.
type Option struct {
	Level int
	Name  int
	Value int
}

func (o Option) String() string {
	return fmt.Sprintf("(%d,%d)=%d", o.Level, o.Name, o.Value)
}

// Applier applies one socket option to a connected socket.
type Applier interface {
	Apply(fd int, opt Option) error
}

type strictApplier struct{}

// Strict returns the default applier: every failure propagates.
func Strict() Applier {
	return strictApplier{}
}

func (strictApplier) Apply(fd int, opt Option) error {
	return unix.SetsockoptInt(fd, opt.Level, opt.Name, opt.Value)
}

type resilientApplier struct {
	next   Applier
	logger *zap.Logger
}

// Resilient wraps an applier so that EINVAL and ENOPROTOOPT are logged and
// swallowed. Any other failure propagates unchanged. This mirrors the reported
// workaround for containers where some TCP options are not settable.
func Resilient(next Applier, logger *zap.Logger) Applier {
	return &resilientApplier{next: next, logger: logger}
}

func (a *resilientApplier) Apply(fd int, opt Option) error {
	err := a.next.Apply(fd, opt)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOPROTOOPT) {
		a.logger.Warn("skipping setsockopt",
			zap.String("option", opt.String()),
			zap.Error(err))
		return nil
	}
	return err
}

// Configure runs every option through the applier on conn's underlying socket.
func Configure(conn net.Conn, applier Applier, opts []Option) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return fmt.Errorf("connection %T does not expose its socket", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw connection: %w", err)
	}

	var applyErr error
	ctlErr := raw.Control(func(fd uintptr) {
		for _, opt := range opts {
			if err := applier.Apply(int(fd), opt); err != nil {
				applyErr = fmt.Errorf("setsockopt %s: %w", opt, err)
				return
			}
		}
	})
	if ctlErr != nil {
		return ctlErr
	}
	return applyErr
}

// Dialer returns a dial function for amqp.Config. The connection is closed
// when socket configuration fails, so a strict applier surfaces the error as
// a failed dial exactly like the SDK's own transport would.
func Dialer(applier Applier, opts []Option) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		conn, err := net.DialTimeout(network, addr, dialTimeout)
		if err != nil {
			return nil, err
		}
		if err := Configure(conn, applier, opts); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
