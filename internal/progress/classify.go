package progress

import (
	"regexp"
	"strconv"
	"strings"
)

type EventKind int

const (
	EventNone EventKind = iota
	EventProgress
	EventFile
	EventTotal
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventFile:
		return "file"
	case EventTotal:
		return "total"
	default:
		return "none"
	}
}

// Event is the result of classifying one line of rsync output. Only the
// fields belonging to Kind are set.
type Event struct {
	Kind EventKind

	Percent    int
	HasPercent bool
	Speed      string

	Path string

	Transferred string
}

const totalTransferredMarker = "Total transferred file size"

var (
	rePct   = regexp.MustCompile(`(\d+)%`)
	reSpeed = regexp.MustCompile(`([0-9.]+[A-Z]?B/s)`)
	reFile  = regexp.MustCompile(`^>f\S+\s+(.*)`)
)

// Classify maps a single rsync output line to at most one event. Rules are
// tried in order and the first match wins: a percentage, an itemized file
// line, the transferred-size summary. Anything else is EventNone.
func Classify(line string) Event {
	if m := rePct.FindStringSubmatch(line); m != nil {
		ev := Event{Kind: EventProgress}
		if n, err := strconv.Atoi(m[1]); err == nil {
			ev.Percent = n
			ev.HasPercent = true
		}
		if sp := reSpeed.FindStringSubmatch(line); sp != nil {
			ev.Speed = sp[1]
		}
		return ev
	}
	if m := reFile.FindStringSubmatch(line); m != nil {
		return Event{Kind: EventFile, Path: strings.TrimSpace(m[1])}
	}
	if strings.Contains(line, totalTransferredMarker) {
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			return Event{}
		}
		return Event{Kind: EventTotal, Transferred: strings.TrimSpace(value)}
	}
	return Event{}
}

// IsDiagnostic reports whether an unclassified line is an rsync warning or
// error message worth keeping in the run's error list.
func IsDiagnostic(line string) bool {
	l := strings.TrimSpace(line)
	return strings.HasPrefix(l, "rsync:") || strings.HasPrefix(l, "rsync error:")
}
