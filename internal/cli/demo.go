package cli

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/postphotos/purrfectcopy/internal/dashboard"
	"github.com/postphotos/purrfectcopy/internal/mascot"
	"github.com/postphotos/purrfectcopy/internal/progress"
)

// runDemo plays a staged fake backup. In test mode it is seeded and short.
func (a *app) runDemo(ctx context.Context) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	steps, duration := dashboard.DemoSteps, dashboard.DemoDuration
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if a.cfg.TestMode {
		steps, duration = dashboard.DemoTestSteps, dashboard.DemoTestDuration
		rng = rand.New(rand.NewSource(0))
	}

	opts := a.dashboardOptions("demo", a.flags.dryRun, nil, a.flags.isQuiet(), cancel)
	opts.Mascot = mascot.New(a.cfg.CowPath)
	opts.Rand = rng
	d := dashboard.New(progress.NewRunState(uuid.NewString(), time.Now()), opts)

	a.log.WithField("steps", steps).Info("demo started")
	s := dashboard.RunDemo(ctx, d, steps, duration)
	if s.ExitCode != 0 {
		return exitFor(s.ExitCode)
	}
	return nil
}
