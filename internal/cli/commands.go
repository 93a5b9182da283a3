package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/postphotos/purrfectcopy/internal/humanize"
	"github.com/postphotos/purrfectcopy/internal/runstore"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

func newDoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "do <name> [<name>...]",
		Aliases: []string{"run"},
		Short:   "Run one or more named backups, in order",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runNamed(cmd.Context(), args, a.flags.dryRun, a.flags.isQuiet())
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured backups and their last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := a.store.Load()
			if err != nil {
				return err
			}
			jobs := doc.Jobs()
			if jsonOut {
				return printJSON(a.streams.out, jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintf(a.streams.out, "no backups configured in %s\n", a.store.Path())
				fmt.Fprintln(a.streams.out, "next: pcopy setup")
				return nil
			}
			fmt.Fprint(a.streams.out, renderJobTable(jobs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func renderJobTable(jobs []settings.Job) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Color.Row = text.Colors{text.Reset}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{
		text.Bold.Sprint("#"), text.Bold.Sprint("Name"), text.Bold.Sprint("Source"), text.Bold.Sprint("Dest"),
		text.Bold.Sprint("Last Ran"), text.Bold.Sprint("Outcome"), text.Bold.Sprint("Size"), text.Bold.Sprint("Duration"),
	})
	for i, job := range jobs {
		row := jobSummary(job)
		t.AppendRow(table.Row{i + 1, job.Name, job.Source, job.Dest, row.lastRan, row.outcome, row.size, row.duration})
	}
	return t.Render() + "\n"
}

type jobRow struct {
	lastRan  string
	outcome  string
	size     string
	duration string
}

func jobSummary(job settings.Job) jobRow {
	lr := job.LastRun
	if lr == nil {
		return jobRow{lastRan: "never", outcome: "never", size: "0 bytes", duration: "0s"}
	}
	outcome := defaultIfEmpty(lr.StatusStr, "never")
	if lr.DryRun {
		outcome += " (dry-run)"
	}
	return jobRow{
		lastRan:  defaultIfEmpty(lr.Timestamp, "never"),
		outcome:  outcome,
		size:     humanize.OptionalBytes(lr.TransferredBytes),
		duration: humanize.OptionalDuration(lr.ElapsedSeconds),
	}
}

func newDemoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Play a simulated backup on the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDemo(cmd.Context())
		},
	}
}

func newDoctorCommand(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check rsync, cowsay and the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := settings.Doctor(a.store, a.cfg.RsyncBinary)
			if jsonOut {
				if err := printJSON(a.streams.out, res); err != nil {
					return err
				}
			} else {
				for _, c := range res.Checks {
					status := "ok"
					if !c.OK {
						status = "fail"
						if c.Optional {
							status = "warn"
						}
					}
					fmt.Fprintf(a.streams.out, "%s: %s (%s)\n", c.Name, status, c.Message)
				}
			}
			if !res.OK {
				return &ExitError{Code: 1, Err: errors.New("doctor checks failed")}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func newSetupCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create or update the main-backup job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSetup(cmd, yes)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "create a missing destination without asking")
	return cmd
}

const (
	setupDefaultSource = "/data"
	setupDefaultDest   = "/backup"
)

func (a *app) runSetup(cmd *cobra.Command, yes bool) error {
	out := a.streams.out
	fmt.Fprintln(out, "🐾 Welcome to the Purrfect Backup setup")

	src, err := a.setupValue(cmd, "source", "Source path", setupDefaultSource)
	if err != nil {
		return err
	}
	dst, err := a.setupValue(cmd, "dest", "Destination path", setupDefaultDest)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Using source: %s\n", src)
	fmt.Fprintf(out, "Using dest:   %s\n", dst)

	fsys := a.store.Fs()
	if !runstore.Exists(fsys, dst) {
		create := yes
		if !create && a.streams.interactive {
			create, err = promptConfirm(a.lineReader(), out, fmt.Sprintf("Destination %s does not exist. Create it? [y/N]: ", dst))
			if err != nil {
				return err
			}
		}
		if create {
			if err := runstore.Mkdir(fsys, dst); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", dst)
		}
	}

	if bak, ok, err := a.store.Backup(); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(out, "Backed up existing settings to %s\n", bak)
	}

	var created bool
	err = a.store.Update(func(doc *settings.Document) error {
		var err error
		created, err = doc.UpsertJob(settings.Job{Name: settings.DefaultJobName, Source: src, Dest: dst})
		if err != nil {
			return err
		}
		return doc.EnsureRsyncOptions()
	})
	if err != nil {
		return err
	}
	verb := "Updated"
	if created {
		verb = "Added"
	}
	a.log.WithField("job", settings.DefaultJobName).Info("setup saved job")
	fmt.Fprintf(out, "%s %s in %s\n", verb, settings.DefaultJobName, a.store.Path())
	fmt.Fprintf(out, "next: pcopy do %s --dry-run\n", settings.DefaultJobName)
	return nil
}

// setupValue prefers an explicit flag, then a prompt, then the default.
func (a *app) setupValue(cmd *cobra.Command, flag, label, def string) (string, error) {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return cleanPath(v, def), nil
	}
	if !a.streams.interactive {
		return def, nil
	}
	v, err := promptDefault(a.lineReader(), a.streams.out, label, def)
	if err != nil {
		return "", err
	}
	return cleanPath(v, def), nil
}

func cleanPath(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	// Keep a trailing slash: it changes what rsync copies.
	if strings.HasSuffix(v, "/") && len(v) > 1 {
		return filepath.Clean(v) + "/"
	}
	return filepath.Clean(v)
}

func jobCountLabel(n int) string {
	if n == 1 {
		return "1 backup"
	}
	return strconv.Itoa(n) + " backups"
}
