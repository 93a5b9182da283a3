package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/postphotos/purrfectcopy/internal/backup"
	"github.com/postphotos/purrfectcopy/internal/settings"
)

type menuMode int

const (
	menuModeBrowse menuMode = iota
	menuModeForm
	menuModeDeleteConfirm
	menuModeRunConfirm
)

const (
	menuActionRunAll = iota
	menuActionDryRunAll
	menuActionCustom
	menuActionNew
)

var menuActions = []string{
	"Run All",
	"Dry-run All",
	"Custom source/dest",
	"New Backup (wizard)",
}

// menuLaunch is a set of runs chosen in the menu, executed after it closes.
type menuLaunch struct {
	Label   string
	DryRun  bool
	Targets []backup.Options
}

// menuPlanner turns jobs into runnable options and command previews.
type menuPlanner interface {
	JobOptions(job settings.Job, dryRun bool) backup.Options
	Preview(opts backup.Options) string
}

type menuModel struct {
	store   *settings.Store
	planner menuPlanner
	reload  func() error

	jobs   []settings.Job
	slogan string
	cursor int
	width  int
	height int
	mode   menuMode
	form   *menuForm

	confirmDeleteName string
	pending           *menuLaunch
	launch            *menuLaunch
	interrupted       bool
	statusMessage     string
	fatalErr          error
}

type menuLoadedMsg struct {
	jobs []settings.Job
	err  error
}

type menuSaveMsg struct {
	message string
	err     error
}

type menuDeleteMsg struct {
	message string
	err     error
}

type settingsChangedMsg struct{}

var (
	menuTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	menuMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	menuErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	menuOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	menuPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	menuSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func newMenuCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive backup menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMenu(cmd.Context())
		},
	}
}

func (a *app) runMenu(ctx context.Context) error {
	if !a.streams.interactive {
		return errors.New("menu requires an interactive terminal (TTY)")
	}
	planner := a.newRunner(false, nil)
	m := newMenuModel(a.store, planner, a.reload, pickSlogan(a.cfg.Slogans.Slogans, a.cfg.Slogans.CatFacts))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(a.streams.in), tea.WithOutput(a.streams.out))

	stop, err := watchSettings(a.store.Path(), func() { p.Send(settingsChangedMsg{}) })
	if err != nil {
		a.log.WithError(err).Warn("settings auto-refresh disabled")
	} else {
		defer stop()
	}

	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("menu requires an interactive terminal (TTY)")
		}
		return err
	}
	fm, ok := finalModel.(menuModel)
	if !ok {
		return nil
	}
	if fm.interrupted {
		return errInterrupted
	}
	if fm.fatalErr != nil {
		return fm.fatalErr
	}
	if fm.launch == nil {
		return nil
	}
	return a.runLaunch(ctx, fm.launch)
}

// runLaunch runs the confirmed targets one after another.
func (a *app) runLaunch(ctx context.Context, l *menuLaunch) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	r := a.newRunner(a.flags.isQuiet(), cancel)
	overall := 0
	for _, opts := range l.Targets {
		if ctx.Err() != nil {
			return errInterrupted
		}
		res, err := r.Run(ctx, opts)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			overall = res.ExitCode
		}
	}
	if len(l.Targets) > 1 && overall == 0 {
		fmt.Fprintln(a.streams.out, menuOKStyle.Render(l.Label+" complete."))
	}
	return exitFor(overall)
}

// watchSettings calls onChange whenever the settings file is written,
// created, renamed or removed. The directory is watched because saves
// replace the file.
func watchSettings(path string, onChange func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return func() {
		_ = w.Close()
		<-done
	}, nil
}

func pickSlogan(slogans, facts []string) string {
	pool := slogans
	if len(pool) == 0 {
		pool = facts
	}
	if len(pool) == 0 {
		return "Purrfect Backup"
	}
	return pool[rand.New(rand.NewSource(time.Now().UnixNano())).Intn(len(pool))]
}

func newMenuModel(store *settings.Store, planner menuPlanner, reload func() error, slogan string) menuModel {
	return menuModel{
		store:   store,
		planner: planner,
		reload:  reload,
		slogan:  slogan,
		mode:    menuModeBrowse,
	}
}

func (m menuModel) Init() tea.Cmd {
	return loadJobsCmd(m.store)
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.form != nil {
			m.form.Input.Width = clampInt(m.width-8, 20, 120)
		}
		return m, nil
	case menuLoadedMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.jobs = msg.jobs
		total := m.totalBrowseRows()
		if m.cursor > total-1 {
			m.cursor = total - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil
	case settingsChangedMsg:
		if m.reload != nil {
			if err := m.reload(); err != nil {
				m.statusMessage = "error: " + err.Error()
			}
		}
		return m, loadJobsCmd(m.store)
	case menuSaveMsg:
		if msg.err != nil {
			if m.form != nil {
				m.form.Error = msg.err.Error()
				m.form.Saving = false
			}
			return m, nil
		}
		m.mode = menuModeBrowse
		m.form = nil
		m.statusMessage = msg.message
		return m, loadJobsCmd(m.store)
	case menuDeleteMsg:
		m.mode = menuModeBrowse
		m.confirmDeleteName = ""
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = msg.message
		return m, loadJobsCmd(m.store)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case menuModeBrowse:
		return m.updateBrowse(keyMsg)
	case menuModeForm:
		return m.updateForm(keyMsg)
	case menuModeDeleteConfirm:
		return m.updateDeleteConfirm(keyMsg)
	case menuModeRunConfirm:
		return m.updateRunConfirm(keyMsg)
	default:
		return m, nil
	}
}

func (m menuModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := m.totalBrowseRows()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < total-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		return m, loadJobsCmd(m.store)
	case "n":
		return m.openForm(newJobForm(nil, m.width)), nil
	case "c":
		return m.openForm(newCustomForm(m.width)), nil
	case "R":
		return m.confirmAll(false), nil
	case "D":
		return m.confirmAll(true), nil
	case "e":
		if job, ok := m.selectedJob(); ok {
			return m.openForm(newJobForm(&job, m.width)), nil
		}
		m.statusMessage = "select a backup to edit"
		return m, nil
	case "d":
		if job, ok := m.selectedJob(); ok {
			return m.confirmJob(job, true), nil
		}
		m.statusMessage = "select a backup to dry-run"
		return m, nil
	case "x", "delete":
		if job, ok := m.selectedJob(); ok {
			m.mode = menuModeDeleteConfirm
			m.confirmDeleteName = job.Name
			return m, nil
		}
		m.statusMessage = "select a backup to delete"
		return m, nil
	case "enter":
		if job, ok := m.selectedJob(); ok {
			return m.confirmJob(job, false), nil
		}
		switch m.selectedActionIndex() {
		case menuActionRunAll:
			return m.confirmAll(false), nil
		case menuActionDryRunAll:
			return m.confirmAll(true), nil
		case menuActionCustom:
			return m.openForm(newCustomForm(m.width)), nil
		case menuActionNew:
			return m.openForm(newJobForm(nil, m.width)), nil
		}
	}
	return m, nil
}

func (m menuModel) openForm(f *menuForm) menuModel {
	m.mode = menuModeForm
	m.form = f
	m.statusMessage = ""
	return m
}

func (m menuModel) confirmJob(job settings.Job, dryRun bool) menuModel {
	label := "Run " + job.Name
	if dryRun {
		label = "Dry-run " + job.Name
	}
	m.pending = &menuLaunch{
		Label:   label,
		DryRun:  dryRun,
		Targets: []backup.Options{m.planner.JobOptions(job, dryRun)},
	}
	m.mode = menuModeRunConfirm
	return m
}

func (m menuModel) confirmAll(dryRun bool) menuModel {
	if len(m.jobs) == 0 {
		m.statusMessage = "error: no named backups defined"
		return m
	}
	label := "Run all"
	if dryRun {
		label = "Dry-run all"
	}
	l := &menuLaunch{Label: label, DryRun: dryRun}
	for _, job := range m.jobs {
		l.Targets = append(l.Targets, m.planner.JobOptions(job, dryRun))
	}
	m.pending = l
	m.mode = menuModeRunConfirm
	return m
}

func (m menuModel) updateRunConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.interrupted = true
		return m, tea.Quit
	case "esc", "n", "q":
		m.mode = menuModeBrowse
		m.pending = nil
		m.statusMessage = "run cancelled"
		return m, nil
	case "enter", "y":
		m.launch = m.pending
		m.pending = nil
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.mode = menuModeBrowse
		m.confirmDeleteName = ""
		m.statusMessage = "delete cancelled"
		return m, nil
	case "y", "enter":
		name := strings.TrimSpace(m.confirmDeleteName)
		if name == "" {
			m.mode = menuModeBrowse
			m.statusMessage = "delete cancelled"
			return m, nil
		}
		return m, deleteJobCmd(m.store, name)
	}
	return m, nil
}

func (m menuModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = menuModeBrowse
		return m, nil
	}
	if m.form.Saving {
		return m, nil
	}

	key := strings.ToLower(msg.String())
	switch key {
	case "ctrl+c", "esc":
		m.mode = menuModeBrowse
		m.form = nil
		m.statusMessage = "wizard cancelled"
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space", "left", "right":
		if m.form.currentField().Kind == menuFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
	case "y", "n":
		if m.form.currentField().Kind == menuFieldBool {
			m.form.setBoolField(key == "y")
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		if m.form.Kind == menuFormKindCustom {
			opts, err := m.form.toCustomOptions()
			if err != nil {
				m.form.Error = err.Error()
				return m, nil
			}
			label := "Custom run"
			if opts.DryRun {
				label = "Custom dry-run"
			}
			m.form = nil
			m.pending = &menuLaunch{Label: label, DryRun: opts.DryRun, Targets: []backup.Options{opts}}
			m.mode = menuModeRunConfirm
			return m, nil
		}
		job, err := m.form.toJob()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		return m, saveJobCmd(m.store, job)
	}

	if m.form.currentField().Kind == menuFieldBool {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m menuModel) View() string {
	if m.fatalErr != nil {
		return menuErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	switch m.mode {
	case menuModeForm:
		return m.viewForm()
	case menuModeDeleteConfirm:
		return m.viewDeleteConfirm()
	case menuModeRunConfirm:
		return m.viewRunConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m menuModel) viewBrowse() string {
	header := menuTitleStyle.Render("🐾 Purrfect Backup") + "  " + menuMutedStyle.Render(m.slogan) + "\n" +
		menuMutedStyle.Render("up/down: move | enter: run | d: dry-run | R/D: run/dry-run all | c: custom | n: new | e: edit | x: delete | q: quit")

	list := m.renderJobsPanel(m.width)
	actions := m.renderActionsPanel(m.width)
	status := m.renderStatusLine(m.width)
	return lipgloss.JoinVertical(lipgloss.Left, header, list, actions, status)
}

func (m menuModel) renderJobsPanel(width int) string {
	if len(m.jobs) == 0 {
		lines := []string{
			menuMutedStyle.Render("No backups configured yet."),
			menuMutedStyle.Render("Select 'New Backup (wizard)' or run 'pcopy setup'."),
		}
		return menuPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
	}

	maxRows := clampInt(m.height-14, 4, 18)
	listCursor := m.cursor
	if listCursor >= len(m.jobs) {
		listCursor = len(m.jobs) - 1
	}
	start, end := listWindow(len(m.jobs), listCursor, maxRows)

	lines := make([]string, 0, maxRows+3)
	lines = append(lines, fmt.Sprintf("%-3s %-18s %-19s %-18s %10s %9s", "#", "Name", "Last Ran", "Outcome", "Size", "Duration"))
	if start > 0 {
		lines = append(lines, menuMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		job := m.jobs[i]
		row := jobSummary(job)
		line := fmt.Sprintf("%-3d %-18s %-19s %-18s %10s %9s",
			i+1, truncateRunes(job.Name, 18), truncateRunes(row.lastRan, 19), truncateRunes(row.outcome, 18), row.size, row.duration)
		line = truncateRunes(line, maxInt(width-6, 10))
		if i == m.cursor {
			line = menuSelStyle.Width(maxInt(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(m.jobs) {
		lines = append(lines, menuMutedStyle.Render("..."))
	}
	if job, ok := m.selectedJob(); ok {
		lines = append(lines, "", wrapOrTrim(kv("source", job.Source), maxInt(width-6, 12)), wrapOrTrim(kv("dest", job.Dest), maxInt(width-6, 12)))
		if job.Versions {
			lines = append(lines, wrapOrTrim(kv("versions", job.VersionsDir("")), maxInt(width-6, 12)))
		}
	}
	title := menuMutedStyle.Render(jobCountLabel(len(m.jobs)))
	return menuPanelStyle.Width(width).Render(title + "\n" + strings.Join(lines, "\n"))
}

func (m menuModel) renderActionsPanel(width int) string {
	lines := make([]string, 0, len(menuActions)+2)
	lines = append(lines, "Actions")
	lines = append(lines, "")
	for i, action := range menuActions {
		row := truncateRunes("[>] "+action, maxInt(width-6, 10))
		if m.isActionCursor() && m.selectedActionIndex() == i {
			row = menuSelStyle.Width(maxInt(width-4, 6)).Render(row)
		}
		lines = append(lines, row)
	}
	return menuPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m menuModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: every run shows the full rsync command before it starts."
	}
	style := menuMutedStyle
	lower := strings.ToLower(msg)
	if strings.HasPrefix(lower, "error:") {
		style = menuErrorStyle
	} else if strings.HasPrefix(lower, "backup ") {
		style = menuOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func (m menuModel) viewRunConfirm() string {
	if m.pending == nil {
		return ""
	}
	lines := []string{menuTitleStyle.Render(m.pending.Label), ""}
	single := len(m.pending.Targets) == 1
	for _, t := range m.pending.Targets {
		dry := t
		dry.DryRun = true
		run := t
		run.DryRun = false
		if single {
			lines = append(lines,
				"Full rsync command (dry-run): "+m.planner.Preview(dry),
				"Full rsync command (run): "+m.planner.Preview(run),
			)
			continue
		}
		name := defaultIfEmpty(t.Name, t.Source)
		lines = append(lines,
			name+" dry-run: "+m.planner.Preview(dry),
			name+" run: "+m.planner.Preview(run),
		)
	}
	lines = append(lines, "", menuMutedStyle.Render("Press y or Enter to continue, n or Esc to go back."))
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(m.width-6, 20))
	}
	return menuPanelStyle.Width(maxInt(m.width-2, 40)).Render(strings.Join(lines, "\n"))
}

func (m menuModel) viewDeleteConfirm() string {
	text := fmt.Sprintf(
		"Delete backup '%s'?\n\nThis removes it from the settings file only.\nFiles already copied stay where they are.\n\nPress y or Enter to confirm, n or Esc to cancel.",
		m.confirmDeleteName,
	)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := menuPanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func (m menuModel) totalBrowseRows() int {
	return len(m.jobs) + len(menuActions)
}

func (m menuModel) isActionCursor() bool {
	return m.cursor >= len(m.jobs)
}

func (m menuModel) selectedJob() (settings.Job, bool) {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return settings.Job{}, false
	}
	return m.jobs[m.cursor], true
}

func (m menuModel) selectedActionIndex() int {
	idx := m.cursor - len(m.jobs)
	if idx < 0 {
		return 0
	}
	if idx >= len(menuActions) {
		return len(menuActions) - 1
	}
	return idx
}

func loadJobsCmd(store *settings.Store) tea.Cmd {
	return func() tea.Msg {
		doc, err := store.Load()
		if err != nil {
			return menuLoadedMsg{err: err}
		}
		return menuLoadedMsg{jobs: doc.Jobs()}
	}
}

func saveJobCmd(store *settings.Store, job settings.Job) tea.Cmd {
	return func() tea.Msg {
		var created bool
		err := store.Update(func(doc *settings.Document) error {
			var err error
			created, err = doc.UpsertJob(job)
			return err
		})
		if err != nil {
			return menuSaveMsg{err: err}
		}
		if created {
			return menuSaveMsg{message: "backup added: " + job.Name}
		}
		return menuSaveMsg{message: "backup updated: " + job.Name}
	}
}

func deleteJobCmd(store *settings.Store, name string) tea.Cmd {
	return func() tea.Msg {
		var removed settings.Job
		err := store.Update(func(doc *settings.Document) error {
			var err error
			removed, err = doc.RemoveJob(name)
			return err
		})
		if err != nil {
			return menuDeleteMsg{err: err}
		}
		return menuDeleteMsg{message: "backup removed: " + removed.Name}
	}
}
