package dashboard

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/mascot"
	"github.com/postphotos/purrfectcopy/internal/progress"
)

type recordingRenderer struct {
	started  bool
	views    []View
	summary  *Summary
	finished int
}

func (r *recordingRenderer) Start()         { r.started = true }
func (r *recordingRenderer) Refresh(v View) { r.views = append(r.views, v) }
func (r *recordingRenderer) Finish(s Summary) {
	r.summary = &s
	r.finished++
}

func testSlogans() config.Slogans {
	return config.Slogans{
		Slogans:  []string{"Keep calm and rsync on"},
		CatFacts: []string{"Cats have five toes on their front paws."},
		Goodbyes: []string{"See you next backup!"},
		Stages: map[string]config.Stage{
			"stage1": {Animals: []string{"datakitten"}, Quotes: []string{"Stretching..."}},
			"stage2": {Animals: []string{"rsyncat"}, Quotes: []string{"Halfway there!"}},
			"stage3": {Animals: []string{"backupcat"}, Quotes: []string{"Almost done!"}},
		},
	}
}

func newTestDashboard(t *testing.T, r Renderer, clock *time.Time) *Dashboard {
	t.Helper()
	t.Setenv("PATH", t.TempDir())
	start := *clock
	return New(progress.NewRunState("run-1", start), Options{
		Title:    "main-backup",
		Slogans:  testSlogans(),
		Pool:     stageQuotes{},
		Mascot:   mascot.New(""),
		CowHold:  7 * time.Second,
		Rand:     rand.New(rand.NewSource(0)),
		Renderer: r,
		Now:      func() time.Time { return *clock },
	})
}

func TestStageKeyBands(t *testing.T) {
	cases := map[int]string{0: "stage1", 25: "stage1", 26: "stage2", 75: "stage2", 76: "stage3", 100: "stage3", 150: "stage3"}
	for pct, want := range cases {
		assert.Equal(t, want, StageKey(pct), "pct=%d", pct)
	}
}

func TestNewQuotePool(t *testing.T) {
	s := testSlogans()
	stage := s.Stage("stage1")

	assert.Equal(t, []string{"Stretching..."}, NewQuotePool(config.QuotePoolStage, nil).Quotes(s, stage))
	assert.Len(t, NewQuotePool(config.QuotePoolFacts, nil).Quotes(s, stage), 2)
	assert.Len(t, NewQuotePool(config.QuotePoolAuto, func() int { return 60 }).Quotes(s, stage), 2)
	assert.Len(t, NewQuotePool(config.QuotePoolAuto, func() int { return 24 }).Quotes(s, stage), 1)
}

func TestUpdateFollowsProgressBands(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	r := &recordingRenderer{}
	d := newTestDashboard(t, r, &clock)
	d.Start()
	require.True(t, r.started)

	d.Update("  1,024  10%  1.00MB/s  0:00:01")
	assert.Equal(t, Mood{Animal: "datakitten", Quote: "Stretching..."}, d.Mood())

	d.Update("  2,048  50%  1.00MB/s  0:00:02")
	assert.Equal(t, Mood{Animal: "rsyncat", Quote: "Halfway there!"}, d.Mood())

	d.Update("  4,096  90%  1.00MB/s  0:00:03")
	assert.Equal(t, Mood{Animal: "backupcat", Quote: "Almost done!"}, d.Mood())

	last := r.views[len(r.views)-1]
	assert.Equal(t, 90, last.Snapshot.Progress)
	assert.Equal(t, "1.00MB/s", last.Snapshot.Speed)
	assert.Equal(t, "Keep calm and rsync on", last.Slogan)
}

func TestEmptyStageFallsBack(t *testing.T) {
	clock := time.Now()
	d := New(nil, Options{
		Rand: rand.New(rand.NewSource(0)),
		Now:  func() time.Time { return clock },
	})
	t.Setenv("PATH", t.TempDir())
	d.Update("5%")
	assert.Equal(t, Mood{Animal: mascot.DefaultCow, Quote: FallbackQuote}, d.Mood())
}

func TestArtHeldForCowHold(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	r := &recordingRenderer{}
	d := newTestDashboard(t, r, &clock)
	d.Start()
	first := r.views[0].Art
	assert.Equal(t, "<datakitten> (0%) Backing up with purrs...\n", first)

	clock = clock.Add(3 * time.Second)
	d.Update("60%")
	assert.Equal(t, first, r.views[len(r.views)-1].Art)

	clock = clock.Add(5 * time.Second)
	d.Update("61%")
	assert.Equal(t, "<rsyncat> (61%) Halfway there!\n", r.views[len(r.views)-1].Art)
}

func TestDiagnosticsAndDuplicates(t *testing.T) {
	clock := time.Now()
	r := &recordingRenderer{}
	d := newTestDashboard(t, r, &clock)

	d.Update(">f+++++++++ a.txt")
	d.Update(">f+++++++++ a.txt")
	d.Update(`rsync: send_files failed to open "/src/b": Permission denied (13)`)
	d.Update("sending incremental file list")

	s := d.State().Snapshot()
	assert.Equal(t, 2, s.FilesMoved)
	assert.Equal(t, 1, s.UniqueFiles)
	assert.Equal(t, 1, s.Duplicates)
	require.Len(t, s.Errors, 1)
	assert.Contains(t, s.Errors[0], "Permission denied")
}

func TestFinishSummary(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	r := &recordingRenderer{}
	d := newTestDashboard(t, r, &clock)
	d.Update(">f+++++++++ a.txt")
	d.Update("Total transferred file size: 2,048 bytes")
	clock = clock.Add(75 * time.Second)

	s := d.Finish(0)
	require.Equal(t, 1, r.finished)
	assert.True(t, s.Success())
	assert.Equal(t, "See you next backup!", s.Goodbye)
	assert.Equal(t, "✅ Purrfect Success! See you next backup!", s.Headline())
	require.NotNil(t, s.Elapsed)
	assert.InDelta(t, 75.0, *s.Elapsed, 0.001)
	require.NotNil(t, s.TransferredBytes)
	assert.EqualValues(t, 2048, *s.TransferredBytes)

	out := s.Render()
	assert.Contains(t, out, "Files moved")
	assert.Contains(t, out, "1m 15s")
	assert.Contains(t, out, "2.0KB")
}

func TestFailureSummaryListsFirstFiveErrors(t *testing.T) {
	clock := time.Now()
	d := newTestDashboard(t, &recordingRenderer{}, &clock)
	for i := 0; i < 7; i++ {
		d.AddError("boom " + string(rune('a'+i)))
	}
	s := d.Finish(23)
	assert.False(t, s.Success())
	assert.Equal(t, "😿 Oh no! Rsync finished with exit code 23 and 7 errors.", s.Headline())
	assert.Len(t, s.FirstErrors(), 5)

	out := s.Render()
	assert.Contains(t, out, "boom e")
	assert.NotContains(t, out, "boom f")
	assert.Contains(t, out, "<guardkitten> Exit code 23")
}

func TestPlainRendererQuiet(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(&buf, false)
	clock := time.Now()
	d := newTestDashboard(t, r, &clock)
	d.Start()
	d.Update("50%")
	d.Finish(0)
	out := buf.String()
	assert.NotContains(t, out, "\r\033[2K")
	assert.Contains(t, out, "Purrfect Success!")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPlainRendererLiveRedrawsStatusLine(t *testing.T) {
	var out lockedBuffer
	r := NewPlainRenderer(&out, true)
	r.interval = 5 * time.Millisecond
	r.Start()
	r.Refresh(View{Snapshot: progress.Snapshot{Progress: 42, FilesMoved: 3, CurrentFile: "photos/cat.jpg"}})

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "\r\033[2K 42%  files 3  | photos/cat.jpg")
	}, 2*time.Second, 5*time.Millisecond)

	r.Finish(Summary{ExitCode: 0, Goodbye: "bye"})
	got := out.String()
	assert.Contains(t, got, "\r\033[2K✅ Purrfect Success! bye")
}

func TestStatusLine(t *testing.T) {
	now := time.Now()
	line := statusLine(View{
		DryRun: true,
		Now:    now,
		Snapshot: progress.Snapshot{
			Progress:    42,
			Speed:       "3.10MB/s",
			FilesMoved:  3,
			CurrentFile: "photos/cat.jpg",
			StartedAt:   now.Add(-5 * time.Second),
		},
	})
	assert.Equal(t, " 42%  dry-run  3.10MB/s  files 3  5s  | photos/cat.jpg", line)
}

func TestLiveModelFinishWithoutHoldQuits(t *testing.T) {
	m := newLiveModel(nil)
	model, _ := m.Update(viewMsg(View{Title: "main-backup", Snapshot: progress.Snapshot{Progress: 30}}))
	assert.Contains(t, model.View(), "Live Stats")
	assert.Contains(t, model.View(), "30%")

	model, cmd := model.Update(finishMsg{summary: Summary{ExitCode: 0, Goodbye: "bye"}})
	require.NotNil(t, cmd)
	assert.Contains(t, model.View(), "Purrfect Success! bye")
}

func TestLiveModelCtrlCInterrupts(t *testing.T) {
	called := false
	m := newLiveModel(func() { called = true })
	_, _ = m.Update(keyCtrlC())
	assert.True(t, called)
}

func TestDemoLines(t *testing.T) {
	lines := DemoLines(DemoTestSteps)
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], ">f+++++++++ demo-file-0.txt"))
	assert.Equal(t, "Total transferred file size: 10485760 bytes", lines[len(lines)-1])

	ev := progress.Classify(lines[len(lines)-2])
	assert.Equal(t, progress.EventProgress, ev.Kind)
	assert.Equal(t, 100, ev.Percent)
}

func TestRunDemoDeterministic(t *testing.T) {
	clock := time.Now()
	r := &recordingRenderer{}
	d := newTestDashboard(t, r, &clock)
	s := RunDemo(context.Background(), d, DemoTestSteps, 20*time.Millisecond)
	assert.Equal(t, 0, s.ExitCode)
	assert.Equal(t, 100, s.Snapshot.Progress)
	assert.Equal(t, 11, s.Snapshot.FilesMoved)
	assert.Equal(t, 1, r.finished)
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,048,576", groupThousands(1048576))
}

func keyCtrlC() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyCtrlC}
}
