package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/postphotos/purrfectcopy/internal/backup"
	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/dashboard"
	"github.com/postphotos/purrfectcopy/internal/logging"
	"github.com/postphotos/purrfectcopy/internal/progress"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

// app is the state shared by every command of one invocation.
type app struct {
	streams streams
	fs      afero.Fs
	flags   rootFlags

	cfg   *config.Config
	log   *logging.Logger
	store *settings.Store
	lines *bufio.Reader
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Options{Fs: a.fs, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(logging.Options{
		File:   a.flags.log,
		Path:   a.flags.logPath,
		Level:  cfg.LogLevel,
		Stderr: a.streams.err,
	})
	for _, w := range cfg.Warnings {
		a.log.Warn(w)
	}
	a.store = settings.NewStore(cfg.Fs(), cfg.SettingsPath)
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

// reload re-reads configuration after the settings file changed.
func (a *app) reload() error {
	if a.cfg == nil {
		return nil
	}
	return a.cfg.Reload()
}

// newRunner wires a backup runner to the right renderer. cancel is invoked
// when ctrl+c is pressed inside the live dashboard.
func (a *app) newRunner(quiet bool, cancel context.CancelFunc) *backup.Runner {
	r := backup.NewRunner(a.cfg, a.store, a.log)
	r.Out = a.streams.out
	r.NewDashboard = func(state *progress.RunState, title string, dryRun bool) *dashboard.Dashboard {
		return dashboard.New(state, a.dashboardOptions(title, dryRun, r, quiet, cancel))
	}
	return r
}

func (a *app) dashboardOptions(title string, dryRun bool, r *backup.Runner, quiet bool, cancel context.CancelFunc) dashboard.Options {
	opts := dashboard.Options{
		Title:   title,
		DryRun:  dryRun,
		Slogans: a.cfg.Slogans,
		Pool:    dashboard.NewQuotePool(a.cfg.QuotePool, dashboard.TerminalHeight),
		CowHold: a.cfg.CowHold,
		Log:     a.log,
	}
	if r != nil {
		opts.Mascot = r.Mascot
	}
	if quiet || !a.streams.interactive || a.cfg.TestMode {
		// --quiet on a terminal still gets the one-line status.
		live := quiet && a.streams.interactive && !a.cfg.TestMode
		opts.Renderer = dashboard.NewPlainRenderer(a.streams.out, live)
		return opts
	}
	opts.Renderer = dashboard.NewLiveRenderer(dashboard.LiveOptions{
		Out:       a.streams.out,
		In:        a.streams.in,
		Hold:      dashboard.DryRunHold,
		Interrupt: cancel,
	})
	return opts
}

func (a *app) runAdHoc(ctx context.Context) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	src := strings.TrimSpace(a.flags.source)
	dst := strings.TrimSpace(a.flags.dest)
	r := a.newRunner(a.flags.isQuiet(), cancel)
	res, err := r.Run(ctx, backup.Options{
		Source: src,
		Dest:   dst,
		DryRun: a.flags.dryRun,
		Extra:  a.cfg.RsyncOptions,
	})
	if err != nil {
		return err
	}
	return exitFor(res.ExitCode)
}

func (a *app) runNamed(ctx context.Context, names []string, dryRun, quiet bool) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	r := a.newRunner(quiet, cancel)
	_, code, err := r.RunNamed(ctx, names, dryRun)
	if err != nil {
		return err
	}
	return exitFor(code)
}

func (a *app) warnf(format string, args ...any) {
	fmt.Fprintf(a.streams.err, format+"\n", args...)
}
