// Package lastrun records the outcome of each backup under <job>.last_run in
// the settings file.
package lastrun

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/postphotos/purrfectcopy/internal/humanize"
	"github.com/postphotos/purrfectcopy/internal/model"
	"github.com/postphotos/purrfectcopy/internal/progress"
	"github.com/postphotos/purrfectcopy/internal/runstore"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

const maxErrorSample = 20

// Store is the part of settings.Store the writer needs.
type Store interface {
	Load() (*settings.Document, error)
	Save(*settings.Document) error
}

type Writer struct {
	store Store
	fs    afero.Fs
	log   logrus.FieldLogger

	// VersionsDir resolves the versions directory scanned for dupes_saved.
	VersionsDir func(job string) string
	Now         func() time.Time
}

func NewWriter(store Store, fs afero.Fs, log logrus.FieldLogger) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Writer{
		store: store,
		fs:    fs,
		log:   log,
		Now:   time.Now,
	}
}

// MarkRunning records that job has started. Failures are logged only.
func (w *Writer) MarkRunning(job, runID string) {
	marker := model.NewRunningMarker(w.Now(), runID)
	w.write(job, marker.Record(), marker)
}

// Persist records the finished run. exit is nil when the exit status is
// unknown. It never returns an error and never panics on I/O failure: every
// problem is logged and swallowed so the caller's exit code is unaffected.
func (w *Writer) Persist(job string, exit *int, dryRun bool, state *progress.RunState) {
	if state == nil {
		state = progress.NewRunState("", time.Time{})
	}
	now := w.Now()
	rec := BuildRecord(exit, dryRun, state, now, w.dupesSaved(job, state.StartedAt))
	w.write(job, rec, rec)
}

// BuildRecord assembles the record without touching the filesystem.
func BuildRecord(exit *int, dryRun bool, state *progress.RunState, now time.Time, dupesSaved bool) model.RunRecord {
	rec := model.RunRecord{
		Timestamp:        model.FormatTimestamp(now),
		Status:           exit,
		StatusStr:        model.StatusLabel(exit),
		DryRun:           dryRun,
		TransferredBytes: ParseTransferredBytes(state.Transferred),
		ErrorsCount:      len(state.Errors),
		ErrorsSample:     sampleErrors(state.Errors),
		Duplicates:       state.Duplicates,
		DupesSaved:       dupesSaved,
		RunID:            state.RunID,
	}
	if secs, ok := state.Elapsed(now); ok {
		rec.ElapsedSeconds = &secs
	}
	return rec
}

// ParseTransferredBytes turns rsync's "Total transferred file size" value
// into a byte count. Unparseable text yields nil, which is distinct from 0.
func ParseTransferredBytes(s string) *int64 {
	n, ok := humanize.ParseBytes(s)
	if !ok {
		return nil
	}
	return &n
}

func (w *Writer) dupesSaved(job string, start time.Time) bool {
	if start.IsZero() || w.VersionsDir == nil {
		return false
	}
	dir := w.VersionsDir(job)
	if dir == "" {
		return false
	}
	saved, err := runstore.ModifiedSince(w.fs, dir, start)
	if err != nil {
		w.log.WithError(err).WithField("job", job).Debug("versions scan failed")
		return false
	}
	return saved
}

func (w *Writer) write(job string, rec model.RunRecord, value any) {
	log := w.log.WithFields(logrus.Fields{"job": job, "run_id": rec.RunID, "status": rec.StatusStr})
	if w.store == nil {
		log.Error("no settings store configured; last_run not saved")
		return
	}

	// A missing file loads as an empty document; anything else would be
	// overwritten, so the record is dropped instead.
	doc, err := w.store.Load()
	if err != nil {
		log.WithError(err).Error("settings unreadable; last_run not saved")
		return
	}

	if prev, err := doc.FindJob(job); err == nil && prev.LastRun != nil {
		current := *prev.LastRun
		if err := model.TransitionRecord(&current, rec); err != nil {
			log.WithError(err).Warn("unexpected last_run transition")
		}
	}

	if err := doc.SetLastRun(job, value); err != nil {
		log.WithError(err).Error("encode last_run failed")
		return
	}
	if err := w.store.Save(doc); err != nil {
		log.WithError(err).Error("persist last_run failed")
		return
	}
	log.Info("persisted last_run")
}

func sampleErrors(errs []string) []string {
	n := len(errs)
	if n > maxErrorSample {
		n = maxErrorSample
	}
	out := make([]string, n)
	copy(out, errs[:n])
	return out
}
