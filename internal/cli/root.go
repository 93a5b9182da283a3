package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/postphotos/purrfectcopy/internal/backup"
	"github.com/postphotos/purrfectcopy/internal/logging"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
	// interactive is true when both stdin and stdout are terminals.
	interactive bool
}

func osStreams() streams {
	return streams{
		in:          os.Stdin,
		out:         os.Stdout,
		err:         os.Stderr,
		interactive: stdinIsTTY() && stdoutIsTTY(),
	}
}

type rootFlags struct {
	dryRun   bool
	quiet    bool
	boring   bool
	demo     bool
	menu     bool
	log      bool
	logPath  string
	source   string
	dest     string
	settings string
	rsync    string
}

func (f rootFlags) isQuiet() bool {
	return f.quiet || f.boring
}

func Run(args []string) error {
	return execute(&app{streams: osStreams(), fs: afero.NewOsFs()}, args)
}

func execute(a *app, args []string) error {
	// cobra skips post-run hooks when a command fails.
	defer a.close()
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCommand(a *app) *cobra.Command {
	s := a.streams

	root := &cobra.Command{
		Use:   "pcopy",
		Short: "Purrfect Backup: rsync with a cat on the dashboard",
		Long: "pcopy runs rsync backups defined in ~/.pcopy-main-backup.yml and shows a live\n" +
			"dashboard while they run. Run 'pcopy setup' to create the main-backup job.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case a.flags.demo:
				return a.runDemo(cmd.Context())
			case a.flags.menu:
				return a.runMenu(cmd.Context())
			case cmd.Flags().Changed("source") || cmd.Flags().Changed("dest"):
				return a.runAdHoc(cmd.Context())
			case a.streams.interactive:
				return a.runMenu(cmd.Context())
			}
			return cmd.Help()
		},
	}
	root.SetIn(s.in)
	root.SetOut(s.out)
	root.SetErr(s.err)

	pf := root.PersistentFlags()
	pf.BoolVar(&a.flags.dryRun, "dry-run", false, "pass --dry-run to rsync; the exit code is always 0")
	pf.BoolVar(&a.flags.quiet, "quiet", false, "no live dashboard, print only the summary")
	pf.BoolVar(&a.flags.boring, "boring", false, "alias for --quiet")
	pf.BoolVar(&a.flags.log, "log", false, "append a run log to --log-path")
	pf.StringVar(&a.flags.logPath, "log-path", logging.DefaultPath, "log file path")
	pf.StringVar(&a.flags.settings, "settings", "", "settings file (default ~/.pcopy-main-backup.yml)")
	pf.StringVar(&a.flags.rsync, "rsync", "", "rsync executable")
	pf.StringVar(&a.flags.source, "source", ".", "source directory for an ad hoc run or setup")
	pf.StringVar(&a.flags.dest, "dest", "./backup", "destination directory for an ad hoc run or setup")

	f := root.Flags()
	f.BoolVar(&a.flags.demo, "demo", false, "play a simulated backup")
	f.BoolVar(&a.flags.menu, "menu", false, "open the interactive menu")

	root.AddCommand(
		newDoCommand(a),
		newListCommand(a),
		newMenuCommand(a),
		newSetupCommand(a),
		newDoctorCommand(a),
		newDemoCommand(a),
	)
	return root
}

// signalContext cancels on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

func exitFor(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

var errInterrupted = &ExitError{Code: backup.ExitInterrupted, Err: errors.New("interrupted")}
