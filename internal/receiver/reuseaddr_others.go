//go:build !linux

package receiver

import "syscall"

// reuseAddrControl is a no-op on platforms without SO_REUSEADDR support
// wired through golang.org/x/sys/unix.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
