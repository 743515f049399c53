package bus

import (
	"context"
	"time"
)

// Delayer blocks for hold and wait periods. Implementations must wait at
// least d; waiting longer is harmless to the board.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}

// spinThreshold is the longest period served by busy-waiting. The Go timer
// cannot promise 100µs resolution, and the strobe holds are short enough that
// spinning costs nothing noticeable.
const spinThreshold = time.Millisecond

// SystemDelayer waits on the wall clock. Periods below one millisecond spin;
// longer ones sleep and honor ctx.
type SystemDelayer struct{}

func (SystemDelayer) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if d < spinThreshold {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordingDelayer returns immediately and remembers every requested period.
// Tests use it to check timing contracts without sleeping.
type RecordingDelayer struct {
	Delays []time.Duration
}

func (r *RecordingDelayer) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.Delays = append(r.Delays, d)
	return nil
}

// Total returns the sum of all recorded periods.
func (r *RecordingDelayer) Total() time.Duration {
	var sum time.Duration
	for _, d := range r.Delays {
		sum += d
	}
	return sum
}

// Count returns how many times d was requested.
func (r *RecordingDelayer) Count(d time.Duration) int {
	n := 0
	for _, v := range r.Delays {
		if v == d {
			n++
		}
	}
	return n
}
