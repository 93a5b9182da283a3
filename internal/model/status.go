package model

import "fmt"

const (
	StatusRunning = "RUNNING"
	StatusPass    = "PASS"
	StatusFailed  = "FAILED"
)

var allowedTransitions = map[string]map[string]bool{
	// A job that never ran. Finishing without a marker happens when the
	// marker write itself failed.
	"": {
		StatusRunning: true,
		StatusPass:    true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusRunning: true, // previous run was killed before finishing
		StatusPass:    true,
		StatusFailed:  true,
	},
	StatusPass: {
		StatusRunning: true,
	},
	StatusFailed: {
		StatusRunning: true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// StatusLabel maps an rsync exit status to its record label. A nil status
// means the process has not finished yet.
func StatusLabel(status *int) string {
	switch {
	case status == nil:
		return StatusRunning
	case *status == 0:
		return StatusPass
	default:
		return StatusFailed
	}
}

func TransitionRecord(rec *RunRecord, next RunRecord) error {
	from := rec.StatusStr
	if !CanTransition(from, next.StatusStr) {
		return fmt.Errorf("invalid run status transition: %q -> %q (run_id=%s)", from, next.StatusStr, next.RunID)
	}
	*rec = next
	return nil
}
