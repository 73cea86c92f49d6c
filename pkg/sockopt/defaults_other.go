//go:build unix && !linux

package sockopt

import "golang.org/x/sys/unix"

// Defaults returns the TCP options the client transport applies after
// connect. Only TCP_NODELAY is portable off Linux; the keepalive tuning and
// user-timeout knobs involved in the container failure are Linux specific.
func Defaults() []Option {
	return []Option{
		{Level: unix.IPPROTO_TCP, Name: unix.TCP_NODELAY, Value: 1},
	}
}
