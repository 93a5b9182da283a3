package dashboard

import (
	"context"
	"fmt"
	"time"
)

const (
	DemoSteps         = 50
	DemoTestSteps     = 10
	DemoDuration      = 20 * time.Second
	DemoTestDuration  = 200 * time.Millisecond
	demoBytesPerStep  = 1_048_576
	demoFileLineEvery = 10
)

// DemoLines builds the fake rsync output for a staged run of steps steps:
// one progress2 line per step and a file line every tenth of the way.
func DemoLines(steps int) []string {
	if steps <= 0 {
		steps = DemoSteps
	}
	every := steps / demoFileLineEvery
	if every < 1 {
		every = 1
	}
	lines := make([]string, 0, steps+steps/every+2)
	for i := 0; i <= steps; i++ {
		if i%every == 0 {
			lines = append(lines, fmt.Sprintf(">f+++++++++ demo-file-%d.txt", i))
		}
		pct := i * 100 / steps
		lines = append(lines, fmt.Sprintf("%14s %3d%%   %d.00MB/s    0:00:%02d",
			groupThousands(int64(i)*demoBytesPerStep), pct, 10+i%7, i%60))
	}
	lines = append(lines, fmt.Sprintf("Total transferred file size: %d bytes", int64(steps)*demoBytesPerStep))
	return lines
}

// RunDemo plays DemoLines through d spread over duration and finishes with
// exit code 0. It stops early when ctx is cancelled.
func RunDemo(ctx context.Context, d *Dashboard, steps int, duration time.Duration) Summary {
	lines := DemoLines(steps)
	delay := duration / time.Duration(len(lines))
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	d.Start()
	for _, line := range lines {
		select {
		case <-ctx.Done():
			return d.Finish(130)
		case <-time.After(delay):
		}
		d.Update(line)
	}
	return d.Finish(0)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	out = append(out, s[:lead]...)
	for i := lead; i < len(s); i += 3 {
		out = append(out, ',')
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
