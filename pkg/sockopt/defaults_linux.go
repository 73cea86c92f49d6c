//go:build linux

package sockopt

import "golang.org/x/sys/unix"

// Defaults returns the TCP options the client transport applies after
// connect. TCP_USER_TIMEOUT is the one known to fail with EINVAL under some
// container runtimes.
func Defaults() []Option {
	return []Option{
		{Level: unix.SOL_TCP, Name: unix.TCP_NODELAY, Value: 1},
		{Level: unix.SOL_TCP, Name: unix.TCP_KEEPIDLE, Value: 60},
		{Level: unix.SOL_TCP, Name: unix.TCP_KEEPINTVL, Value: 10},
		{Level: unix.SOL_TCP, Name: unix.TCP_KEEPCNT, Value: 9},
		{Level: unix.SOL_TCP, Name: unix.TCP_USER_TIMEOUT, Value: 60000},
	}
}
