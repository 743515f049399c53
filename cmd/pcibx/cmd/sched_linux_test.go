//go:build linux

package cmd

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/OpenTraceLab/pcibx/internal/config"
)

type schedResult struct {
	err    error
	policy uint32
	again  uint32
}

// TestSetSchedulerPinsThread checks that the real-time policy is still in
// effect on the thread running the goroutine after it has yielded. The
// goroutine exits locked, so its thread is discarded with the policy.
func TestSetSchedulerPinsThread(t *testing.T) {
	done := make(chan schedResult, 1)
	go func() {
		var res schedResult
		if res.err = setScheduler(config.SchedFIFO); res.err != nil {
			done <- res
			return
		}
		attr, err := unix.SchedGetAttr(0, 0)
		if err != nil {
			res.err = err
			done <- res
			return
		}
		res.policy = attr.Policy

		// Give the runtime every chance to move an unlocked goroutine.
		for i := 0; i < 100; i++ {
			ch := make(chan struct{})
			go func() { close(ch) }()
			<-ch
		}
		if attr, err = unix.SchedGetAttr(0, 0); err != nil {
			res.err = err
		} else {
			res.again = attr.Policy
		}
		done <- res
	}()

	res := <-done
	if errors.Is(res.err, unix.EPERM) {
		t.Skip("SCHED_FIFO needs CAP_SYS_NICE")
	}
	if res.err != nil {
		t.Fatalf("setScheduler(fifo): %v", res.err)
	}
	if res.policy != unix.SCHED_FIFO || res.again != unix.SCHED_FIFO {
		t.Fatalf("policy = %d then %d, want SCHED_FIFO (%d)", res.policy, res.again, unix.SCHED_FIFO)
	}
}

func TestSetSchedulerPolicies(t *testing.T) {
	for _, policy := range []string{"", config.SchedNormal} {
		if err := setScheduler(policy); err != nil {
			t.Fatalf("setScheduler(%q): %v", policy, err)
		}
	}
	if err := setScheduler("batch"); err == nil {
		t.Fatal("setScheduler(batch) returned nil error")
	}
}
