package player

import (
	"context"
	"time"
)

// Tick emits playback offsets every interval, wrapped modulo period, and
// corrects each delay against the wall-clock baseline so scheduler jitter
// never accumulates: a late tick shortens the next delay instead of
// pushing the whole schedule back. Two tickers started with the same
// baseline stay in lock-step without talking to each other.
//
// The first offset is emitted immediately. The channel closes when ctx is
// cancelled.
func Tick(ctx context.Context, baseline time.Time, start, interval, period time.Duration) <-chan time.Duration {
	ch := make(chan time.Duration)

	go func() {
		defer close(ch)

		offset := wrap(start, period)
		for {
			select {
			case ch <- offset:
			case <-ctx.Done():
				return
			}

			offset = wrap(offset+interval, period)
			baseline = baseline.Add(interval)

			// interval + drift, where drift = baseline - now before
			// the advance; a stalled tick yields a shorter delay.
			delay := time.Until(baseline)
			if delay < 0 {
				delay = 0
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return ch
}

// wrap normalizes an offset into [0, period). A non-positive period
// leaves the offset unwrapped.
func wrap(offset, period time.Duration) time.Duration {
	if period <= 0 {
		return offset
	}
	offset %= period
	if offset < 0 {
		offset += period
	}
	return offset
}
