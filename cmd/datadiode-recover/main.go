// Command datadiode-recover runs the offline two-layer XOR peeling decoder
// over a slice store left behind by datadiode-recv, reconstructing the
// original file from whatever mix of clear and parity slices arrived.
package main

import (
	"os"

	"github.com/upt-cs/datadiode/internal/ddconfig"
	"github.com/upt-cs/datadiode/internal/ddlog"
	"github.com/upt-cs/datadiode/internal/ddopts"
	"github.com/upt-cs/datadiode/internal/recovery"
)

func main() {
	args, err := ddopts.ParseRecover(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := ddlog.New(os.Stderr, args.Verbose)
	cfg := ddconfig.NewRecovery(ddconfig.WithRecoveryLogger(logger))

	stats, err := recovery.Run(args.InputFolder, args.FileBasename, args.XORGroupSize, cfg)
	if err != nil {
		logger.Error("recovery incomplete", "err", err,
			"clear_present", stats.ClearPresent, "slices", stats.Slices)
		os.Exit(2)
	}
	logger.Info("recovery successful", "file", args.FileBasename, "slices", stats.Slices)
}
