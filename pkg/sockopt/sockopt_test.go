package sockopt

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type fakeApplier struct {
	errs    map[int]error
	applied []Option
}

func (f *fakeApplier) Apply(fd int, opt Option) error {
	f.applied = append(f.applied, opt)
	return f.errs[opt.Name]
}

func TestResilientSuppressesKnownErrnos(t *testing.T) {
	for _, errno := range []unix.Errno{unix.EINVAL, unix.ENOPROTOOPT} {
		fake := &fakeApplier{errs: map[int]error{unix.TCP_NODELAY: errno}}
		applier := Resilient(fake, zap.NewNop())

		err := applier.Apply(3, Option{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1})
		assert.NoError(t, err, "errno %v must be swallowed", errno)
	}
}

func TestResilientPropagatesOtherErrnos(t *testing.T) {
	for _, errno := range []unix.Errno{unix.EPERM, unix.EBADF, unix.ECONNRESET} {
		fake := &fakeApplier{errs: map[int]error{unix.TCP_NODELAY: errno}}
		applier := Resilient(fake, zap.NewNop())

		err := applier.Apply(3, Option{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1})
		assert.ErrorIs(t, err, errno)
	}
}

func TestResilientPassthroughOnSuccess(t *testing.T) {
	fake := &fakeApplier{}
	applier := Resilient(fake, zap.NewNop())

	opts := []Option{
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1},
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_KEEPCNT, Value: 9},
	}
	for _, opt := range opts {
		require.NoError(t, applier.Apply(3, opt))
	}
	assert.Equal(t, opts, fake.applied)
}

func TestConfigureAppliesToRealSocket(t *testing.T) {
	conn := dialLoopback(t)
	defer conn.Close()

	err := Configure(conn, Strict(), []Option{
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1},
	})
	require.NoError(t, err)
}

func TestConfigureStopsAtFirstFailure(t *testing.T) {
	conn := dialLoopback(t)
	defer conn.Close()

	fake := &fakeApplier{errs: map[int]error{unix.TCP_KEEPCNT: unix.EPERM}}
	err := Configure(conn, fake, []Option{
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1},
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_KEEPCNT, Value: 9},
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_KEEPINTVL, Value: 10},
	})
	require.ErrorIs(t, err, unix.EPERM)
	assert.Len(t, fake.applied, 2, "options after the failure must not be attempted")
}

func TestDialerClosesConnOnApplierFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	fake := &fakeApplier{errs: map[int]error{unix.TCP_NODELAY: unix.EPERM}}
	dial := Dialer(fake, []Option{{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1}})

	_, err = dial("tcp", ln.Addr().String())
	require.ErrorIs(t, err, unix.EPERM)
}

func TestDialerSucceedsWithResilientApplier(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	fake := &fakeApplier{errs: map[int]error{unix.TCP_NODELAY: unix.EINVAL}}
	dial := Dialer(Resilient(fake, zap.NewNop()), []Option{
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1},
	})

	conn, err := dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}

func TestDefaultsIncludeNodelay(t *testing.T) {
	var found bool
	for _, opt := range Defaults() {
		if opt.Name == unix.TCP_NODELAY {
			found = true
			assert.Equal(t, 1, opt.Value)
		}
	}
	assert.True(t, found)
}

func dialLoopback(t *testing.T) net.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	return conn
}
