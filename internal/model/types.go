package model

import "time"

// TimestampLayout is used for every timestamp written to the settings file.
const TimestampLayout = "2006-01-02T15:04:05"

// RunRecord is the summary stored under <job>.last_run.
type RunRecord struct {
	Timestamp        string   `yaml:"timestamp" json:"timestamp"`
	Status           *int     `yaml:"status" json:"status"`
	StatusStr        string   `yaml:"status_str" json:"status_str"`
	DryRun           bool     `yaml:"dry_run" json:"dry_run"`
	ElapsedSeconds   *float64 `yaml:"elapsed_seconds" json:"elapsed_seconds"`
	TransferredBytes *int64   `yaml:"transferred_bytes" json:"transferred_bytes"`
	ErrorsCount      int      `yaml:"errors_count" json:"errors_count"`
	ErrorsSample     []string `yaml:"errors_sample" json:"errors_sample"`
	Duplicates       int      `yaml:"duplicates" json:"duplicates"`
	DupesSaved       bool     `yaml:"dupes_saved" json:"dupes_saved"`
	RunID            string   `yaml:"run_id,omitempty" json:"run_id,omitempty"`
}

// RunningMarker is written before rsync starts so an interrupted run stays
// visible as RUNNING.
type RunningMarker struct {
	Timestamp string `yaml:"timestamp" json:"timestamp"`
	Status    *int   `yaml:"status" json:"status"`
	StatusStr string `yaml:"status_str" json:"status_str"`
	RunID     string `yaml:"run_id,omitempty" json:"run_id,omitempty"`
}

func NewRunningMarker(now time.Time, runID string) RunningMarker {
	return RunningMarker{
		Timestamp: FormatTimestamp(now),
		StatusStr: StatusRunning,
		RunID:     runID,
	}
}

func (m RunningMarker) Record() RunRecord {
	return RunRecord{
		Timestamp: m.Timestamp,
		StatusStr: m.StatusStr,
		RunID:     m.RunID,
	}
}

func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// ParseTimestamp accepts the layout written by FormatTimestamp as well as
// RFC3339 and fractional-second variants written by older versions.
func ParseTimestamp(raw string) (time.Time, bool) {
	layouts := []string{
		TimestampLayout,
		"2006-01-02T15:04:05.999999",
		time.RFC3339,
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
