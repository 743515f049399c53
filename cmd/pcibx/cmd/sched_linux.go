//go:build linux

package cmd

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/OpenTraceLab/pcibx/internal/config"
)

// rtPriority is the Linux maximum for SCHED_FIFO and SCHED_RR.
const rtPriority = 99

// setScheduler switches the calling thread to a real-time policy so strobe
// holds are not stretched by preemption. "normal" leaves the policy alone.
//
// The policy is per thread, so a real-time request locks the calling
// goroutine to its OS thread. The caller must open the device and run the
// queue on that same goroutine.
func setScheduler(policy string) error {
	attr := unix.SchedAttr{Size: unix.SizeofSchedAttr, Priority: rtPriority}
	switch policy {
	case config.SchedNormal, "":
		return nil
	case config.SchedFIFO:
		attr.Policy = unix.SCHED_FIFO
	case config.SchedRR:
		attr.Policy = unix.SCHED_RR
	default:
		return fmt.Errorf("unknown policy %q", policy)
	}

	runtime.LockOSThread()
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
