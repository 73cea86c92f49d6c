package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"

	"github.com/queuediag/sessionprobe/cmd/config"
	"github.com/queuediag/sessionprobe/pkg/broker"
	"github.com/queuediag/sessionprobe/pkg/envinfo"
	"github.com/queuediag/sessionprobe/pkg/roundtrip"
	"github.com/queuediag/sessionprobe/pkg/session"
	"github.com/queuediag/sessionprobe/pkg/sockopt"
	"github.com/queuediag/sessionprobe/pkg/verdict"
)

func main() {
	os.Exit(run(os.Stdout))
}

func run(out io.Writer) int {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	var appCfg config.Config
	help, err := conf.Parse("", &appCfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Fprintln(out, help)
			return 0
		}
		fmt.Fprintf(out, "ERROR: parsing config: %v\n", err)
		return 1
	}
	if err := appCfg.Validate(); err != nil {
		fmt.Fprintf(out, "ERROR: %v\n", err)
		return 1
	}

	sessionID := session.NewID()
	fmt.Fprint(out, envinfo.Collect(sessionID, appCfg.NumMessages, appCfg.PatchEnabled()))
	fmt.Fprintln(out)

	// The socket-option strategy is chosen once, before either test, and is
	// shared by both client variants.
	applier := sockopt.Strict()
	if appCfg.PatchEnabled() {
		applier = sockopt.Resilient(applier, logger)
	}
	brokerCfg := broker.Config{
		Dial:   sockopt.Dialer(applier, sockopt.Defaults()),
		Logger: logger,
	}

	opts := roundtrip.Options{
		Queue:     appCfg.QueueName,
		SessionID: sessionID,
		Count:     appCfg.NumMessages,
		Logger:    logger,
		Out:       out,
	}

	ctx := context.Background()

	syncRes := roundtrip.New("Test 1: sync send/receive", "sync",
		func(ctx context.Context) (broker.Client, error) {
			return broker.Open(appCfg.ConnectionString, brokerCfg)
		}, opts).Run(ctx)

	asyncRes := roundtrip.New("Test 2: async send/receive", "async",
		func(ctx context.Context) (broker.Client, error) {
			return broker.OpenAsync(appCfg.ConnectionString, brokerCfg)
		}, opts).Run(ctx)

	printSummary(out, syncRes, asyncRes)

	v := verdict.Classify(syncRes.Passed, asyncRes.Passed)
	fmt.Fprintf(out, "VERDICT: %s (exit %d)\n", v.Label, v.Code)
	return v.Code
}

func printSummary(out io.Writer, results ...roundtrip.Result) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "SUMMARY")
	fmt.Fprintln(out, rule)
	for _, r := range results {
		fmt.Fprintf(out, "  %-28s: %s\n", r.Name, r.Status())
	}
	fmt.Fprintln(out, rule)
}
