package bond

import (
	"context"
	"time"

	"github.com/xraph/bond/schedule"
)

// WakePlan returns the day's wake events bound to this engine: the daily
// event runs every item, hourly events run hourly items only.
func (e *Engine) WakePlan(now time.Time) []schedule.WakeEvent {
	return schedule.Plan(now,
		func(ctx context.Context) { e.RunCycle(ctx) },
		func(ctx context.Context) { e.RunCycle(ctx, Hourly) },
	)
}
