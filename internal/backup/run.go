// Package backup drives one rsync run end to end: dependency check, the
// RUNNING marker, streaming output into the dashboard, and the last_run
// record.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/dashboard"
	"github.com/postphotos/purrfectcopy/internal/lastrun"
	"github.com/postphotos/purrfectcopy/internal/mascot"
	"github.com/postphotos/purrfectcopy/internal/progress"
	"github.com/postphotos/purrfectcopy/internal/rsync"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

const (
	ExitNotFound    = 2
	ExitUnknownJob  = 2
	ExitInterrupted = 130

	failureTailBytes = 4096
	simulateDelay    = 10 * time.Millisecond
)

type Options struct {
	// Name is the job name. Ad hoc runs leave it empty and are not recorded.
	Name   string
	Source string
	Dest   string
	DryRun bool
	Extra  []string
}

type Result struct {
	Name  string
	RunID string
	// ExitCode is what the process should exit with. Dry runs always report 0.
	ExitCode int
	// RsyncExitCode is what rsync actually returned.
	RsyncExitCode int
	Command       []string
	Missing       bool
	Summary       dashboard.Summary
}

// DashboardFactory builds the dashboard for one run.
type DashboardFactory func(state *progress.RunState, title string, dryRun bool) *dashboard.Dashboard

type Runner struct {
	cfg    *config.Config
	store  *settings.Store
	writer *lastrun.Writer
	log    logrus.FieldLogger

	Out          io.Writer
	Mascot       *mascot.Mascot
	NewDashboard DashboardFactory
	Now          func() time.Time
	NewRunID     func() string
	// SimulateDelay paces the fake output in test mode.
	SimulateDelay time.Duration
}

func NewRunner(cfg *config.Config, store *settings.Store, log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	r := &Runner{
		cfg:           cfg,
		store:         store,
		log:           log,
		Out:           os.Stdout,
		Mascot:        mascot.New(cfg.CowPath),
		Now:           time.Now,
		NewRunID:      uuid.NewString,
		SimulateDelay: simulateDelay,
	}
	if store != nil {
		r.writer = lastrun.NewWriter(store, store.Fs(), log)
		r.writer.VersionsDir = r.versionsDir
	}
	r.NewDashboard = func(state *progress.RunState, title string, dryRun bool) *dashboard.Dashboard {
		return dashboard.New(state, dashboard.Options{
			Title:    title,
			DryRun:   dryRun,
			Slogans:  cfg.Slogans,
			Pool:     dashboard.NewQuotePool(cfg.QuotePool, dashboard.TerminalHeight),
			Mascot:   r.Mascot,
			CowHold:  cfg.CowHold,
			Log:      log,
			Renderer: dashboard.NewPlainRenderer(r.Out, false),
		})
	}
	return r
}

// Run performs a single backup. It only returns an error for problems that
// happen before rsync starts; rsync's own failures are reported through
// Result.ExitCode.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	res := Result{Name: opts.Name}
	if strings.TrimSpace(opts.Source) == "" || strings.TrimSpace(opts.Dest) == "" {
		return res, fmt.Errorf("source and dest are required")
	}

	if !r.cfg.TestMode {
		if _, err := rsync.LookPath(r.cfg.RsyncBinary); err != nil {
			r.log.WithError(err).WithField("job", opts.Name).Error("rsync not found")
			dashboard.RenderMissing(r.Out, r.Mascot, binaryName(r.cfg.RsyncBinary))
			res.Missing = true
			res.ExitCode = ExitNotFound
			res.RsyncExitCode = ExitNotFound
			return res, nil
		}
	}

	res.RunID = r.NewRunID()
	log := r.log.WithFields(logrus.Fields{"job": opts.Name, "run_id": res.RunID, "dry_run": opts.DryRun})
	log.WithFields(logrus.Fields{"source": opts.Source, "dest": opts.Dest}).Info("backup started")

	record := opts.Name != "" && r.writer != nil
	if record {
		r.writer.MarkRunning(opts.Name, res.RunID)
	}

	state := progress.NewRunState(res.RunID, r.Now())
	title := opts.Name
	if title == "" {
		title = opts.Source + " → " + opts.Dest
	}
	d := r.NewDashboard(state, title, opts.DryRun)
	d.Start()

	ropts := rsync.Options{
		Binary: r.cfg.RsyncBinary,
		Source: opts.Source,
		Dest:   opts.Dest,
		DryRun: opts.DryRun,
		Extra:  opts.Extra,
		Line: func(line string) {
			log.WithField("line", line).Debug("rsync output")
			d.Update(line)
		},
	}

	var (
		out rsync.Result
		err error
	)
	if r.cfg.TestMode {
		out, err = rsync.Simulate(ctx, ropts, r.SimulateDelay)
	} else {
		out, err = rsync.Run(ctx, ropts)
	}
	res.Command = out.Command
	code := out.ExitCode
	switch {
	case errors.Is(err, rsync.ErrNotFound):
		code = ExitNotFound
		d.AddError(err.Error())
	case ctx.Err() != nil:
		code = ExitInterrupted
		d.AddError("interrupted")
	case err != nil:
		code = 1
		d.AddError(err.Error())
	}
	if out.ScanErr != nil {
		d.AddError(out.ScanErr.Error())
	}
	res.RsyncExitCode = code

	if code != 0 && !opts.DryRun {
		log.WithFields(logrus.Fields{
			"exit_code":   code,
			"output_tail": tail(out.Output, failureTailBytes),
		}).Error("rsync failed")
	}

	res.Summary = d.Finish(code)
	log.WithFields(logrus.Fields{
		"exit_code":    code,
		"files_moved":  res.Summary.Snapshot.FilesMoved,
		"errors_count": len(res.Summary.Snapshot.Errors),
	}).Info("backup finished")

	if record {
		r.writer.Persist(opts.Name, &code, opts.DryRun, state)
	}

	res.ExitCode = code
	if opts.DryRun {
		res.ExitCode = 0
	}
	return res, nil
}

// RunNamed runs each job in order. An unknown name is reported and skipped.
// The returned code is 0 only when every run succeeded; otherwise it is the
// last non-zero code.
func (r *Runner) RunNamed(ctx context.Context, names []string, dryRun bool) ([]Result, int, error) {
	if r.store == nil {
		return nil, 1, fmt.Errorf("no settings file configured")
	}
	results := make([]Result, 0, len(names))
	overall := 0
	for _, name := range names {
		if ctx.Err() != nil {
			return results, ExitInterrupted, nil
		}
		doc, err := r.store.Load()
		if err != nil {
			return results, 1, err
		}
		job, err := doc.FindJob(name)
		if err != nil {
			r.log.WithError(err).WithField("job", name).Error("named backup not found")
			fmt.Fprintf(r.Out, "Named backup '%s' not found in settings\n", name)
			overall = ExitUnknownJob
			continue
		}
		res, err := r.Run(ctx, r.JobOptions(job, dryRun))
		if err != nil {
			return results, 1, err
		}
		results = append(results, res)
		if res.ExitCode != 0 {
			overall = res.ExitCode
		}
	}
	return results, overall, nil
}

// JobOptions resolves the rsync invocation for a configured job.
func (r *Runner) JobOptions(job settings.Job, dryRun bool) Options {
	return Options{
		Name:   job.Name,
		Source: job.Source,
		Dest:   job.Dest,
		DryRun: dryRun,
		Extra:  JobArgs(job, r.cfg.RsyncOptions, r.cfg.BackupVersionsDir, r.Now()),
	}
}

// Preview is the full command line a job would run with.
func (r *Runner) Preview(opts Options) string {
	return rsync.CommandLine(r.cfg.RsyncBinary, rsync.BuildArgs(opts.Source, opts.Dest, opts.DryRun, opts.Extra))
}

func (r *Runner) versionsDir(name string) string {
	global := r.cfg.BackupVersionsDir
	doc, err := r.store.Load()
	if err != nil {
		return global
	}
	job, err := doc.FindJob(name)
	if err != nil {
		return global
	}
	if !job.Versions && job.BackupVersionsDir == "" && global == "" {
		return ""
	}
	return job.VersionsDir(global)
}

func binaryName(b string) string {
	if strings.TrimSpace(b) == "" {
		return rsync.DefaultBinary
	}
	return b
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
