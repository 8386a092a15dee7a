// Package ddopts parses the arguments of datadiode-send, datadiode-recv and
// datadiode-recover (the amplifier and deamplifier use the standard flag
// package for their single -verbose flag),
// grounded on internal/rsyncopts's use of github.com/DavidGamba/go-getoptions
// in Bundling mode (rsyncd/rsyncd.go's CLI setup follows the same pattern).
package ddopts

import (
	"fmt"

	"github.com/DavidGamba/go-getoptions"
)

// SendArgs are the parsed positional arguments for datadiode-send:
// <ipv4> <port> <filename> <xor-group-size> <spray>.
type SendArgs struct {
	IPv4         string
	Port         int
	Filename     string
	XORGroupSize int
	Spray        int
	Verbose      bool
}

// ParseSend parses argv (excluding the program name) for datadiode-send.
func ParseSend(argv []string) (SendArgs, error) {
	opt := getoptions.New()
	opt.SetMode(getoptions.Bundling)
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	opt.SetUnknownMode(getoptions.Pass)
	remaining, err := opt.Parse(argv)
	if err != nil {
		return SendArgs{}, fmt.Errorf("ddopts: %w", err)
	}
	if len(remaining) != 5 {
		return SendArgs{}, fmt.Errorf("usage: datadiode-send [-v] <ipv4> <port> <filename> <xor-group-size> <spray>")
	}
	var a SendArgs
	a.IPv4 = remaining[0]
	a.Filename = remaining[2]
	a.Verbose = *verbose
	if _, err := fmt.Sscanf(remaining[1], "%d", &a.Port); err != nil {
		return SendArgs{}, fmt.Errorf("ddopts: invalid port %q: %w", remaining[1], err)
	}
	if _, err := fmt.Sscanf(remaining[3], "%d", &a.XORGroupSize); err != nil {
		return SendArgs{}, fmt.Errorf("ddopts: invalid xor-group-size %q: %w", remaining[3], err)
	}
	if _, err := fmt.Sscanf(remaining[4], "%d", &a.Spray); err != nil {
		return SendArgs{}, fmt.Errorf("ddopts: invalid spray %q: %w", remaining[4], err)
	}
	return a, nil
}

// RecvArgs are the parsed positional arguments for datadiode-recv:
// <port> <temp-folder>.
type RecvArgs struct {
	Port       int
	TempFolder string
	Verbose    bool
}

// ParseRecv parses argv for datadiode-recv. port is the base of three
// consecutive ports (clear/parity/checksum), matching datadiode-send's
// three-consecutive-port convention.
func ParseRecv(argv []string) (RecvArgs, error) {
	opt := getoptions.New()
	opt.SetMode(getoptions.Bundling)
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	opt.SetUnknownMode(getoptions.Pass)
	remaining, err := opt.Parse(argv)
	if err != nil {
		return RecvArgs{}, fmt.Errorf("ddopts: %w", err)
	}
	if len(remaining) != 2 {
		return RecvArgs{}, fmt.Errorf("usage: datadiode-recv [-v] <port> <temp-folder>")
	}
	var a RecvArgs
	a.TempFolder = remaining[1]
	a.Verbose = *verbose
	if _, err := fmt.Sscanf(remaining[0], "%d", &a.Port); err != nil {
		return RecvArgs{}, fmt.Errorf("ddopts: invalid port %q: %w", remaining[0], err)
	}
	return a, nil
}

// RecoverArgs are the parsed positional arguments for datadiode-recover:
// <input-folder> <file-basename> <xor-group-size>.
type RecoverArgs struct {
	InputFolder  string
	FileBasename string
	XORGroupSize int
	Verbose      bool
}

// ParseRecover parses argv for datadiode-recover.
func ParseRecover(argv []string) (RecoverArgs, error) {
	opt := getoptions.New()
	opt.SetMode(getoptions.Bundling)
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	opt.SetUnknownMode(getoptions.Pass)
	remaining, err := opt.Parse(argv)
	if err != nil {
		return RecoverArgs{}, fmt.Errorf("ddopts: %w", err)
	}
	if len(remaining) != 3 {
		return RecoverArgs{}, fmt.Errorf("usage: datadiode-recover [-v] <input-folder> <file-basename> <xor-group-size>")
	}
	var a RecoverArgs
	a.InputFolder = remaining[0]
	a.FileBasename = remaining[1]
	a.Verbose = *verbose
	if _, err := fmt.Sscanf(remaining[2], "%d", &a.XORGroupSize); err != nil {
		return RecoverArgs{}, fmt.Errorf("ddopts: invalid xor-group-size %q: %w", remaining[2], err)
	}
	return a, nil
}
