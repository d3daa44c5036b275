package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Countdown renders the time left on a bounded wait. It only writes to its
// writer and stops when its context ends, the deadline passes or Stop is called.
type Countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartCountdown prints "label: HH:MM:SS" on w once per second, overwriting the
// line with a carriage return, until total has elapsed or ctx is done.
// Callers usually pass the same ctx that bounds the request being waited on.
func StartCountdown(ctx context.Context, total time.Duration, label string, w io.Writer) *Countdown {
	if w == nil {
		w = io.Discard
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Countdown{cancel: cancel, done: make(chan struct{})}

	deadline := time.Now().Add(total)
	render(w, label, total)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_, _ = fmt.Fprintln(w)
				return
			case now := <-ticker.C:
				remaining := deadline.Sub(now)
				if remaining <= 0 {
					render(w, label, 0)
					_, _ = fmt.Fprintln(w)
					return
				}
				render(w, label, remaining)
			}
		}
	}()
	return c
}

// Stop cancels the countdown and waits for its goroutine to exit. It is safe to call more than once.
func (c *Countdown) Stop() {
	if c == nil {
		return
	}
	c.once.Do(c.cancel)
	<-c.done
}

// Done is closed once the countdown has finished rendering.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// FormatRemaining renders d as HH:MM:SS, rounding partial seconds up.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func render(w io.Writer, label string, remaining time.Duration) {
	_, _ = fmt.Fprintf(w, "\r%s: %s", label, FormatRemaining(remaining))
}
