// Command datadiode-recv listens for a data-diode file transfer across
// three consecutive UDP ports and assembles the received slices into an
// on-disk slice store, leaving offline recovery to datadiode-recover.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/ddlog"
	"github.com/upt-cs/datadiode/internal/ddopts"
	"github.com/upt-cs/datadiode/internal/receiver"
)

func main() {
	args, err := ddopts.ParseRecv(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := ddlog.New(os.Stderr, args.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r := receiver.New(args.TempFolder, ddconfig.WithReceiverLogger(logger))
	if err := r.Run(ctx, args.Port); err != nil {
		logger.Error("receiver failed", "err", err)
		os.Exit(2)
	}
}
