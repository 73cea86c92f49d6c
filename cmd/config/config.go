package config

import (
	"errors"
	"strings"

	"github.com/ardanlabs/conf/v3"
)

// Config - app config, parsed once at startup with no prefix so that the env
// names match what operators already export for the reported issue.
type Config struct {
	conf.Version
	ConnectionString string `conf:"env:CONNECTION_STRING,help:AMQP connection string of the broker under test"`
	QueueName        string `conf:"env:QUEUE_NAME,help:session-enabled queue to round-trip messages through"`
	NumMessages      int    `conf:"env:NUM_MESSAGES,default:1,help:messages to round-trip per test"`
	ApplyPatch       string `conf:"env:APPLY_PATCH,help:tolerate EINVAL/ENOPROTOOPT during socket setup (1/true/yes)"`
}

// Validate reports the required values that are missing. Configuration absence
// is fatal and checked before any network activity.
func (c Config) Validate() error {
	var missing []string
	if c.ConnectionString == "" {
		missing = append(missing, "CONNECTION_STRING")
	}
	if c.QueueName == "" {
		missing = append(missing, "QUEUE_NAME")
	}
	if len(missing) > 0 {
		return errors.New(strings.Join(missing, " and ") + " must be set")
	}
	if c.NumMessages < 1 {
		return errors.New("NUM_MESSAGES must be at least 1")
	}
	return nil
}

// PatchEnabled interprets APPLY_PATCH the way the reported workaround does:
// "1", "true" and "yes" are truthy, case-insensitive, everything else is off.
func (c Config) PatchEnabled() bool {
	switch strings.ToLower(c.ApplyPatch) {
	case "1", "true", "yes":
		return true
	}
	return false
}
