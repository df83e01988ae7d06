package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/monitoring"
)

const defaultOutboxLag = 15 * time.Minute

// OutboxReporter reports the domain event backlog.
type OutboxReporter interface {
	Backlog(ctx context.Context, maxLag time.Duration) (events.Backlog, error)
}

// Outbox degrades readiness when invite and booking events stop reaching
// their subscribers: either events older than maxLag are still pending, or
// some exhausted their retries and need an operator.
func Outbox(reporter OutboxReporter, maxLag, timeout time.Duration) monitoring.Check {
	if maxLag <= 0 {
		maxLag = defaultOutboxLag
	}
	return monitoring.NewCheck("outbox", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "event dispatcher not configured"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		backlog, err := reporter.Backlog(probeCtx, maxLag)
		if err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}

		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
			Details:  fmt.Sprintf("pending=%d overdue=%d failed=%d", backlog.Pending, backlog.Overdue, backlog.Failed),
		}
		if backlog.Overdue > 0 || backlog.Failed > 0 {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
