// Command datadiode-amplify resends every syslog datagram it receives on
// port 1514 AMPFACTOR times to localhost:2514, prefixed with a rolling
// counter, to compensate for diode packet loss ahead of datadiode-deamplify
// on the other side.
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

	cfg := ddconfig.NewAmplifier(ddconfig.WithAmplifierLogger(logger))
	if err := ampli.Amplify(ctx, cfg); err != nil {
		logger.Error("amplifier failed", "err", err)
		os.Exit(1)
	}
}
