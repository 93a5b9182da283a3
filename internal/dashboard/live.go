package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/postphotos/purrfectcopy/internal/humanize"
)

// DryRunHold is how long the finished view of an interactive dry run stays
// up before returning, unless a key is pressed.
const DryRunHold = 30 * time.Second

const barWidth = 30

var (
	liveTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	liveMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	liveLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	liveErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	liveOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	livePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type LiveOptions struct {
	Out io.Writer
	In  io.Reader
	// Hold applies to dry runs only.
	Hold time.Duration
	// Interrupt is called when ctrl+c is pressed while rsync is running.
	Interrupt func()
}

// LiveRenderer draws the full dashboard with bubbletea. The program runs on
// its own goroutine and only receives copies of the view through Send.
type LiveRenderer struct {
	opts    LiveOptions
	program *tea.Program
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func NewLiveRenderer(opts LiveOptions) *LiveRenderer {
	return &LiveRenderer{opts: opts, done: make(chan struct{})}
}

func (r *LiveRenderer) Start() {
	popts := []tea.ProgramOption{}
	if r.opts.Out != nil {
		popts = append(popts, tea.WithOutput(r.opts.Out))
	}
	if r.opts.In != nil {
		popts = append(popts, tea.WithInput(r.opts.In))
	}
	r.program = tea.NewProgram(newLiveModel(r.opts.Interrupt), popts...)
	go func() {
		defer close(r.done)
		if _, err := r.program.Run(); err != nil {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		}
	}()
}

func (r *LiveRenderer) Refresh(v View) {
	if r.program == nil {
		return
	}
	r.program.Send(viewMsg(v))
}

func (r *LiveRenderer) Finish(s Summary) {
	if r.program == nil {
		return
	}
	hold := time.Duration(0)
	if s.DryRun {
		hold = r.opts.Hold
	}
	r.program.Send(finishMsg{summary: s, hold: hold})
	<-r.done
}

// Err reports why the bubbletea program stopped early, if it did.
func (r *LiveRenderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

type viewMsg View

type finishMsg struct {
	summary Summary
	hold    time.Duration
}

type holdExpiredMsg struct{}

type liveModel struct {
	view      View
	summary   *Summary
	bar       progress.Model
	spin      spinner.Model
	width     int
	interrupt func()
}

func newLiveModel(interrupt func()) liveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return liveModel{
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithFillCharacters('█', '░'),
			progress.WithoutPercentage(),
		),
		spin:      s,
		interrupt: interrupt,
	}
}

func (m liveModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case viewMsg:
		m.view = View(msg)
		return m, nil
	case finishMsg:
		s := msg.summary
		m.summary = &s
		if msg.hold <= 0 {
			return m, tea.Quit
		}
		return m, tea.Tick(msg.hold, func(time.Time) tea.Msg { return holdExpiredMsg{} })
	case holdExpiredMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if m.summary != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" && m.interrupt != nil {
			m.interrupt()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m liveModel) View() string {
	if m.summary != nil {
		return m.summaryView()
	}
	v := m.view
	header := liveTitleStyle.Render("Purrfect Backup 🐾")
	if v.Title != "" {
		header += "  " + liveMutedStyle.Render(v.Title)
	}
	if v.DryRun {
		header += "  " + liveMutedStyle.Render("(dry run)")
	}
	lines := []string{header}
	if v.Slogan != "" {
		lines = append(lines, liveMutedStyle.Render(v.Slogan))
	}
	lines = append(lines,
		fmt.Sprintf("%s %s %3d%%", m.spin.View(), m.bar.ViewAs(barFraction(v.Snapshot.Progress)), v.Snapshot.Progress),
	)

	mascotPanel := livePanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		liveLabelStyle.Render("Backup Mascot"),
		strings.TrimRight(v.Art, "\n"),
	))
	statsPanel := livePanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		append([]string{liveLabelStyle.Render("Live Stats")}, statsLines(v)...)...,
	))
	var body string
	if m.width > 0 && lipgloss.Width(mascotPanel)+lipgloss.Width(statsPanel) > m.width {
		body = lipgloss.JoinVertical(lipgloss.Left, mascotPanel, statsPanel)
	} else {
		body = lipgloss.JoinHorizontal(lipgloss.Top, mascotPanel, statsPanel)
	}
	lines = append(lines, body)
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func (m liveModel) summaryView() string {
	s := *m.summary
	head := liveOKStyle.Render(s.Headline())
	if !s.Success() {
		head = liveErrorStyle.Render(s.Headline())
	}
	parts := []string{head}
	if !s.Success() {
		for _, e := range s.FirstErrors() {
			parts = append(parts, "  - "+e)
		}
	}
	parts = append(parts, s.Table())
	if s.Art != "" {
		parts = append(parts, strings.TrimRight(s.Art, "\n"))
	}
	if s.DryRun {
		parts = append(parts, liveMutedStyle.Render("press any key to continue"))
	}
	return livePanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)) + "\n"
}

func statsLines(v View) []string {
	s := v.Snapshot
	elapsed := "0s"
	if secs, ok := s.Elapsed(v.Now); ok {
		elapsed = humanize.Duration(secs)
	}
	kv := func(k, val string) string {
		if val == "" {
			val = "-"
		}
		return fmt.Sprintf("%-13s %s", k+":", val)
	}
	lines := []string{
		kv("Current File", truncateRunes(s.CurrentFile, 48)),
		kv("Last Moved", truncateRunes(s.LastMovedFile, 48)),
		kv("Speed", s.Speed),
		kv("Transferred", s.Transferred),
		kv("Elapsed", elapsed),
		kv("Files", fmt.Sprintf("%d moved, %d unique", s.FilesMoved, s.UniqueFiles)),
	}
	if s.Duplicates > 0 {
		lines = append(lines, kv("Duplicates", fmt.Sprintf("%d", s.Duplicates)))
	}
	if n := len(s.Errors); n > 0 {
		lines = append(lines, liveErrorStyle.Render(kv("Errors", fmt.Sprintf("%d", n))))
	}
	return lines
}

// barFraction clamps for drawing only; the state keeps the raw value.
func barFraction(pct int) float64 {
	switch {
	case pct <= 0:
		return 0
	case pct >= 100:
		return 1
	}
	return float64(pct) / 100
}
