package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestFormatRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00:00"},
		{in: -time.Second, want: "00:00:00"},
		{in: 180 * time.Second, want: "00:03:00"},
		{in: 1500 * time.Millisecond, want: "00:00:02"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "01:02:03"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCountdownStopJoins(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := StartCountdown(context.Background(), 3*time.Minute, "QR", &buf)
	c.Stop()
	c.Stop()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done() not closed after Stop")
	}
	if !strings.Contains(buf.String(), "\rQR: 00:03:00") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestCountdownFollowsParentContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	c := StartCountdown(ctx, time.Minute, "PIN", nil)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not stop when its context was cancelled")
	}
}

func TestCountdownEndsAtDeadline(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := StartCountdown(context.Background(), time.Second, "wait", &buf)
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("countdown did not stop at its deadline")
	}
	if !strings.Contains(buf.String(), "wait: 00:00:00") {
		t.Fatalf("output = %q", buf.String())
	}
}
