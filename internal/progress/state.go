package progress

import "time"

// RunState accumulates what one rsync run has reported so far. It is owned
// by the goroutine reading rsync output; other goroutines get Snapshots.
type RunState struct {
	RunID         string
	Progress      int
	CurrentFile   string
	LastMovedFile string
	Speed         string
	Transferred   string
	Errors        []string
	FilesMoved    int
	Duplicates    int
	StartedAt     time.Time

	seen map[string]struct{}
}

// Snapshot is an immutable copy of RunState handed to renderers.
type Snapshot struct {
	Progress      int
	CurrentFile   string
	LastMovedFile string
	Speed         string
	Transferred   string
	Errors        []string
	FilesMoved    int
	UniqueFiles   int
	Duplicates    int
	StartedAt     time.Time
}

func NewRunState(runID string, startedAt time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		StartedAt: startedAt,
		seen:      make(map[string]struct{}),
	}
}

// Apply folds ev into the state. It reports whether ev was a file that had
// already been transferred earlier in this run.
func (s *RunState) Apply(ev Event) bool {
	switch ev.Kind {
	case EventProgress:
		if ev.HasPercent {
			s.Progress = ev.Percent
		}
		if ev.Speed != "" {
			s.Speed = ev.Speed
		}
	case EventFile:
		s.CurrentFile = ev.Path
		s.LastMovedFile = ev.Path
		s.FilesMoved++
		if s.seen == nil {
			s.seen = make(map[string]struct{})
		}
		if _, dup := s.seen[ev.Path]; dup {
			s.Duplicates++
			return true
		}
		s.seen[ev.Path] = struct{}{}
	case EventTotal:
		s.Transferred = ev.Transferred
	}
	return false
}

func (s *RunState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func (s *RunState) UniqueFiles() int {
	return len(s.seen)
}

// Elapsed returns seconds since StartedAt, or false when the start time is
// unknown.
func (s *RunState) Elapsed(now time.Time) (float64, bool) {
	if s.StartedAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.StartedAt).Seconds(), true
}

func (s *RunState) Snapshot() Snapshot {
	errs := make([]string, len(s.Errors))
	copy(errs, s.Errors)
	return Snapshot{
		Progress:      s.Progress,
		CurrentFile:   s.CurrentFile,
		LastMovedFile: s.LastMovedFile,
		Speed:         s.Speed,
		Transferred:   s.Transferred,
		Errors:        errs,
		FilesMoved:    s.FilesMoved,
		UniqueFiles:   len(s.seen),
		Duplicates:    s.Duplicates,
		StartedAt:     s.StartedAt,
	}
}

func (s Snapshot) Elapsed(now time.Time) (float64, bool) {
	if s.StartedAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.StartedAt).Seconds(), true
}
