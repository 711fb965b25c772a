package runner

import (
	"bufio"
	"context"
	"io"
	"time"
)

// WaitReason says how an interactive countdown resolved.
type WaitReason int

const (
	WaitTimeout WaitReason = iota // countdown ran out, keep going
	WaitSkip                      // operator shortened the wait
	WaitQuit                      // operator aborted the whole run
	WaitNextSource                // operator aborted the current source
)

func (r WaitReason) String() string {
	switch r {
	case WaitTimeout:
		return "timeout"
	case WaitSkip:
		return "skip"
	case WaitQuit:
		return "quit"
	case WaitNextSource:
		return "next-source"
	default:
		return "unknown"
	}
}

// Waiter races a countdown timer against operator signals. A nil signal
// channel degrades to a plain cancellable sleep.
type Waiter struct {
	signals <-chan WaitReason
}

func NewWaiter(signals <-chan WaitReason) *Waiter {
	return &Waiter{signals: signals}
}

// Wait blocks until the countdown expires, an operator signal arrives, or
// the context is cancelled. The timer is stopped on early resolution.
func (w *Waiter) Wait(ctx context.Context, d time.Duration) WaitReason {
	if d <= 0 {
		return WaitTimeout
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return WaitQuit
	case <-timer.C:
		return WaitTimeout
	case reason, ok := <-w.signals:
		if !ok {
			// Input closed (e.g. stdin EOF): fall back to the timer.
			w.signals = nil
			select {
			case <-ctx.Done():
				return WaitQuit
			case <-timer.C:
				return WaitTimeout
			}
		}
		return reason
	}
}

// ReadKeys turns single-key operator input into wait signals:
// s → skip, n → next source, q → quit. The channel closes on EOF.
func ReadKeys(r io.Reader) <-chan WaitReason {
	signals := make(chan WaitReason)
	go func() {
		defer close(signals)
		reader := bufio.NewReader(r)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return
			}
			switch b {
			case 's', 'S':
				signals <- WaitSkip
			case 'n', 'N':
				signals <- WaitNextSource
			case 'q', 'Q':
				signals <- WaitQuit
			}
		}
	}()
	return signals
}
