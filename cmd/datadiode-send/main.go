// Command datadiode-send sends a file across a one-way UDP link using the
// fountain-style redundancy scheme described by this repository's transfer
// protocol: a sequential pass, randomized clear/parity resprays, and a final
// EOF storm.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/ddlog"
	"github.com/upt-cs/datadiode/internal/ddopts"
	"github.com/upt-cs/datadiode/internal/sender"
)

func main() {
	args, err := ddopts.ParseSend(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := ddlog.New(os.Stderr, args.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := sender.New(args.IPv4, args.Port, args.XORGroupSize, args.Spray,
		ddconfig.WithSenderLogger(logger))
	if err != nil {
		logger.Error("failed to initialize sender", "err", err)
		os.Exit(2)
	}
	defer s.Close()

	if err := s.SendFile(ctx, args.Filename); err != nil {
		logger.Error("send failed", "err", err)
		os.Exit(3)
	}
}
