// Command datadiode-deamplify strips the rolling counter prepended by
// datadiode-amplify and forwards only the first copy of each syslog
// datagram on to the real syslog listener, suppressing the amplifier's
// duplicates.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/upt-cs/datadiode/internal/ampli"
	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/ddlog"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := ddlog.New(os.Stderr, *verbose)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := ddconfig.NewDeamplifier(ddconfig.WithDeamplifierLogger(logger))
	if err := ampli.Deamplify(ctx, cfg); err != nil {
		logger.Error("deamplifier failed", "err", err)
		os.Exit(1)
	}
}
