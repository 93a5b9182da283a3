package dashboard

import (
	"math/rand"

	"github.com/postphotos/purrfectcopy/internal/config"
	"github.com/postphotos/purrfectcopy/internal/mascot"
)

const FallbackQuote = "Backing up with purrs..."

// tallTerminalRows is the height above which the auto pool adds cat facts.
const tallTerminalRows = 45

// Mood is the mascot and the line it is saying.
type Mood struct {
	Animal string
	Quote  string
}

// StageKey maps a percentage to its band: up to 25 is stage1, up to 75 is
// stage2, everything above is stage3.
func StageKey(pct int) string {
	switch {
	case pct <= 25:
		return "stage1"
	case pct <= 75:
		return "stage2"
	default:
		return "stage3"
	}
}

// QuotePool decides which quotes a stage may draw from.
type QuotePool interface {
	Quotes(s config.Slogans, stage config.Stage) []string
}

type stageQuotes struct{}

func (stageQuotes) Quotes(_ config.Slogans, stage config.Stage) []string {
	return stage.Quotes
}

type stageAndFacts struct{}

func (stageAndFacts) Quotes(s config.Slogans, stage config.Stage) []string {
	pool := make([]string, 0, len(stage.Quotes)+len(s.CatFacts))
	pool = append(pool, stage.Quotes...)
	return append(pool, s.CatFacts...)
}

// NewQuotePool resolves the configured mode once. In auto mode cat facts are
// only mixed in when the terminal is tall enough to show them.
func NewQuotePool(mode string, termHeight func() int) QuotePool {
	switch mode {
	case config.QuotePoolStage:
		return stageQuotes{}
	case config.QuotePoolFacts:
		return stageAndFacts{}
	}
	if termHeight != nil && termHeight() > tallTerminalRows {
		return stageAndFacts{}
	}
	return stageQuotes{}
}

type moodPicker struct {
	slogans config.Slogans
	pool    QuotePool
	rng     *rand.Rand
}

// next picks a mood for pct. An empty animal list keeps current's animal.
func (p moodPicker) next(pct int, current Mood) Mood {
	stage := p.slogans.Stage(StageKey(pct))
	mood := current
	if mood.Animal == "" {
		mood.Animal = mascot.DefaultCow
	}
	if len(stage.Animals) > 0 {
		mood.Animal = stage.Animals[p.rng.Intn(len(stage.Animals))]
	}
	quotes := p.pool.Quotes(p.slogans, stage)
	if len(quotes) == 0 {
		mood.Quote = FallbackQuote
		return mood
	}
	mood.Quote = quotes[p.rng.Intn(len(quotes))]
	return mood
}

func (p moodPicker) pick(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return list[p.rng.Intn(len(list))]
}
