//go:build linux

// Package affinity pins the calling goroutine's OS thread to a single CPU
// core, for the receiver's three per-port worker goroutines
// (datadiode-recv.c's set_affinity_thread, ported from
// pthread_setaffinity_np to Go's runtime.LockOSThread + sched_setaffinity).
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the current goroutine to its current OS thread and restricts
// that thread to run on the given CPU core. It must be called from the
// goroutine that should be pinned, before any blocking work begins.
func Pin(core int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity core %d: %w", core, err)
	}
	return nil
}
