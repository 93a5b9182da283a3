// Package dashboard turns rsync output into the live backup view: progress,
// stats, a mascot with a quote that follows the progress, and a final
// summary.
package dashboard

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/humanize"
	"github.com/postphotos/purrfectcopy/internal/mascot"
	"github.com/postphotos/purrfectcopy/internal/progress"
)

const defaultGoodbye = "Your files are safe and sound."

// View is everything a renderer needs to draw one frame.
type View struct {
	Title    string
	Slogan   string
	DryRun   bool
	Snapshot progress.Snapshot
	Mood     Mood
	Art      string
	Now      time.Time
}

// Summary describes a finished run.
type Summary struct {
	Title            string
	DryRun           bool
	ExitCode         int
	Snapshot         progress.Snapshot
	Elapsed          *float64
	TransferredBytes *int64
	Goodbye          string
	Art              string
}

func (s Summary) Success() bool {
	return s.ExitCode == 0
}

// Renderer draws views. Refresh is called from the goroutine reading rsync
// output; implementations must not hold on to mutable state.
type Renderer interface {
	Start()
	Refresh(View)
	// Finish draws the summary and blocks until the renderer is done.
	Finish(Summary)
}

type Options struct {
	Title    string
	DryRun   bool
	Slogans  config.Slogans
	Pool     QuotePool
	Mascot   *mascot.Mascot
	CowHold  time.Duration
	Rand     *rand.Rand
	Log      logrus.FieldLogger
	Renderer Renderer
	Now      func() time.Time
}

// Dashboard owns a RunState and is its only writer.
type Dashboard struct {
	state    *progress.RunState
	picker   moodPicker
	mascot   *mascot.Mascot
	renderer Renderer
	log      logrus.FieldLogger
	now      func() time.Time
	hold     time.Duration

	title  string
	slogan string
	dryRun bool
	mood   Mood
	art    string
	artAt  time.Time
}

func New(state *progress.RunState, opts Options) *Dashboard {
	if state == nil {
		state = progress.NewRunState("", time.Now())
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Pool == nil {
		opts.Pool = stageQuotes{}
	}
	if opts.Mascot == nil {
		opts.Mascot = mascot.New("")
	}
	if opts.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Log = l
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Renderer == nil {
		opts.Renderer = nopRenderer{}
	}
	d := &Dashboard{
		state:    state,
		picker:   moodPicker{slogans: opts.Slogans, pool: opts.Pool, rng: opts.Rand},
		mascot:   opts.Mascot,
		renderer: opts.Renderer,
		log:      opts.Log,
		now:      opts.Now,
		hold:     opts.CowHold,
		title:    opts.Title,
		dryRun:   opts.DryRun,
		mood:     Mood{Animal: mascot.DefaultCow, Quote: FallbackQuote},
	}
	d.slogan = d.picker.pick(opts.Slogans.Slogans, "")
	return d
}

func (d *Dashboard) State() *progress.RunState {
	return d.state
}

func (d *Dashboard) Mood() Mood {
	return d.mood
}

func (d *Dashboard) Start() {
	d.renderer.Start()
	d.renderer.Refresh(d.view())
}

// Update is the single entry point for rsync output.
func (d *Dashboard) Update(line string) {
	ev := progress.Classify(line)
	if d.state.Apply(ev) {
		d.log.WithField("file", ev.Path).Warn("duplicate transfer detected")
	}
	if ev.Kind == progress.EventNone && progress.IsDiagnostic(line) {
		d.state.AddError(line)
		d.log.WithField("line", line).Debug("rsync diagnostic")
	}
	d.mood = d.picker.next(d.state.Progress, d.mood)
	d.renderer.Refresh(d.view())
}

// AddError records a failure that did not come from rsync itself.
func (d *Dashboard) AddError(msg string) {
	d.state.AddError(msg)
}

// Finish hands the summary to the renderer and waits for it.
func (d *Dashboard) Finish(exitCode int) Summary {
	s := d.Summary(exitCode)
	d.renderer.Finish(s)
	return s
}

func (d *Dashboard) Summary(exitCode int) Summary {
	now := d.now()
	s := Summary{
		Title:    d.title,
		DryRun:   d.dryRun,
		ExitCode: exitCode,
		Snapshot: d.state.Snapshot(),
		Goodbye:  d.picker.pick(d.picker.slogans.Goodbyes, defaultGoodbye),
	}
	if secs, ok := d.state.Elapsed(now); ok {
		s.Elapsed = &secs
	}
	if n, ok := humanize.ParseBytes(d.state.Transferred); ok {
		s.TransferredBytes = &n
	}
	if s.Success() {
		s.Art = d.mascot.Art(s.Goodbye, d.mood.Animal)
	} else {
		s.Art = d.mascot.Art(fmt.Sprintf("Exit code %d", exitCode), "guardkitten")
	}
	return s
}

func (d *Dashboard) view() View {
	now := d.now()
	if d.art == "" || d.hold <= 0 || now.Sub(d.artAt) >= d.hold {
		d.art = d.mascot.Art(fmt.Sprintf("(%d%%) %s", d.state.Progress, d.mood.Quote), d.mood.Animal)
		d.artAt = now
	}
	return View{
		Title:    d.title,
		Slogan:   d.slogan,
		DryRun:   d.dryRun,
		Snapshot: d.state.Snapshot(),
		Mood:     d.mood,
		Art:      d.art,
		Now:      now,
	}
}

type nopRenderer struct{}

func (nopRenderer) Start()         {}
func (nopRenderer) Refresh(View)   {}
func (nopRenderer) Finish(Summary) {}
