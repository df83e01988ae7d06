package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/cache"
	testutil "github.com/charlesng35/gigbook/internal/database/testutil"
	"github.com/charlesng35/gigbook/internal/monitoring"
)

type fakeOutbox struct {
	pendingCalls int
	lastLimit    int
	pruneCutoff  time.Time
	deliverErr   error
}

func (f *fakeOutbox) DeliverPending(_ context.Context, limit int) (int, error) {
	f.pendingCalls++
	f.lastLimit = limit
	return 2, f.deliverErr
}

func (f *fakeOutbox) PruneDelivered(_ context.Context, cutoff time.Time) (int64, error) {
	f.pruneCutoff = cutoff
	return 1, nil
}

type fakeNotifications struct {
	cutoff time.Time
	err    error
}

func (f *fakeNotifications) PruneRead(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestCleanerRunOnceAppliesRetention(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	outbox := &fakeOutbox{}
	notifications := &fakeNotifications{}
	tracker := monitoring.NewJobTracker()

	cleaner := NewCleaner(outbox,
		WithNow(func() time.Time { return now }),
		WithNotificationPruner(notifications),
		WithTracker(tracker),
		WithBatchSize(25),
		WithRetention(48*time.Hour, 24*time.Hour),
	)

	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.Equal(t, 1, outbox.pendingCalls)
	require.Equal(t, 25, outbox.lastLimit)
	require.Equal(t, now.Add(-24*time.Hour), outbox.pruneCutoff)
	require.Equal(t, now.Add(-48*time.Hour), notifications.cutoff)

	jobs := tracker.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, JobEventRedelivery, jobs[0].Job)
	require.Equal(t, JobNotificationPrune, jobs[1].Job)
	for _, job := range jobs {
		require.EqualValues(t, 1, job.TotalRuns)
		require.Zero(t, job.ConsecutiveFailures)
	}
}

func TestCleanerRunOnceCombinesErrors(t *testing.T) {
	outbox := &fakeOutbox{deliverErr: errors.New("delivery down")}
	notifications := &fakeNotifications{err: errors.New("prune failed")}
	tracker := monitoring.NewJobTracker()

	cleaner := NewCleaner(outbox, WithNotificationPruner(notifications), WithTracker(tracker))

	err := cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "delivery down")
	require.Contains(t, err.Error(), "prune failed")

	for _, job := range tracker.Jobs() {
		require.EqualValues(t, 1, job.ConsecutiveFailures)
		require.NotEmpty(t, job.LastError)
	}
}

func TestCleanerPurgesExpiredCacheEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(ctx, "forever", []byte("y"), 0))

	later := time.Now().Add(time.Hour)
	cleaner := NewCleaner(nil, WithCachePurger(store), WithNow(func() time.Time { return later }))
	require.NoError(t, cleaner.RunOnce(ctx))

	var remaining int64
	require.NoError(t, db.Table("cache_entries").Count(&remaining).Error)
	require.EqualValues(t, 1, remaining)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(&fakeOutbox{}, WithCron(c), WithSchedules("@every 1h", "@daily", ""))
	require.NoError(t, cleaner.Start())
	defer cleaner.Stop()

	require.Len(t, c.Entries(), 2)
}

func TestCleanerWithoutJobsIsNoop(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(nil, WithCron(c))
	require.NoError(t, cleaner.Start())
	require.Empty(t, c.Entries())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestCleanerRejectsInvalidSchedule(t *testing.T) {
	cleaner := NewCleaner(&fakeOutbox{}, WithSchedules("not a spec", "", ""))
	require.Error(t, cleaner.Start())
}
