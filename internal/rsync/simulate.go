package rsync

import (
	"context"
	"time"
)

// SimulatedOutput is what Simulate feeds instead of real rsync output.
var SimulatedOutput = []string{
	" 10% 0.12MB/s 0:00:01",
	">f+++++++++ demo/file1.txt",
	" 50% 0.45MB/s 0:00:02",
	">f+++++++++ demo/file2.txt",
	"Total transferred file size: 12345 bytes",
	"100% 0.00MB/s 0:00:10",
}

// Simulate replays SimulatedOutput through opts.Line without spawning rsync
// and reports success. Used when test mode is enabled.
func Simulate(ctx context.Context, opts Options, delay time.Duration) (Result, error) {
	args := BuildArgs(opts.Source, opts.Dest, opts.DryRun, opts.Extra)
	res := Result{Command: append([]string{binaryOrDefault(opts.Binary)}, args...)}
	for _, line := range SimulatedOutput {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.Line != nil {
			opts.Line(line)
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return res, nil
}
