package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gigbook/internal/models"
	"github.com/charlesng35/gigbook/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the primary database and confirms the booking schema is in
// place. A reachable database without the invites table is reported down so
// traffic is not routed to an instance that skipped migrations.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		if err := sqlDB.PingContext(probeCtx); err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}
		if !db.WithContext(probeCtx).Migrator().HasTable(&models.Invite{}) {
			return monitoring.ResultFromError(errors.New("booking schema not migrated"), time.Since(start))
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
