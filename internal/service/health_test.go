package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/cache"
	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/domain"
)

func newTestTracker(fakes *fakeRepos) (*HealthTracker, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	cfg := config.SyncConfig{
		HealthTTL:        time.Minute,
		ActivityMaxCount: 100,
		ActivityMaxAge:   30 * 24 * time.Hour,
	}
	return NewHealthTracker(fakes.repositories(), store, cfg, zap.NewNop()), store
}

func TestRecordSyncSuccessStaysHealthy(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.LastSyncAt, domain.SyncKindProduct)
}

func TestRecordSyncErrorDegrades(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, errors.New("boom"))

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
	assert.Equal(t, 1, health.ErrorCount24h)
}

func TestElevenErrorsEscalateToError(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		tracker.RecordSync(ctx, conn.ID, domain.SyncKindInventory, fmt.Errorf("failure %d", i))
	}

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusError, health.Status)
}

func TestTenErrorsStayDegraded(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		tracker.RecordSync(ctx, conn.ID, domain.SyncKindInventory, fmt.Errorf("failure %d", i))
	}

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
}

func TestSingleSuccessDoesNotResetPersistentErrors(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, errors.New("one"))
	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, errors.New("two"))
	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
}

func TestSingleErrorRecoversOnSuccess(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, errors.New("transient"))
	tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, nil)

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
}

func TestRateLimitForcesDegradedAndExpires(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, store := newTestTracker(fakes)
	ctx := context.Background()

	tracker.RecordRateLimit(ctx, conn.ID, 2*time.Second)

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
	assert.True(t, health.Throttled)
	require.NotNil(t, health.ThrottledUntil)

	// Advance both clocks past the throttle window
	future := time.Now().Add(5 * time.Second)
	tracker.now = func() time.Time { return future }
	store.SetClock(func() time.Time { return future })

	health, err = tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.False(t, health.Throttled)
	assert.Nil(t, health.ThrottledUntil)
}

func TestComputeHealthErrorMappingRatio(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierPro, domain.ConnectionStatusActive)
	rp := "rp"
	for i := 0; i < 100; i++ {
		m := fakes.addMapping(conn.ID, fmt.Sprintf("p%d", i), domain.MappingStatusActive, &rp)
		if i < 15 {
			msg := "sku drift"
			m.LastError = &msg
		}
	}
	tracker, _ := newTestTracker(fakes)

	// 15 errored of 100 active is above the 10% threshold
	health, err := tracker.ComputeHealth(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusError, health.Status)
	assert.Equal(t, 15, health.ErrorMappings)
}

func TestComputeHealthRatioAtTenPercentIsNotError(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierPro, domain.ConnectionStatusActive)
	rp := "rp"
	for i := 0; i < 100; i++ {
		m := fakes.addMapping(conn.ID, fmt.Sprintf("p%d", i), domain.MappingStatusActive, &rp)
		if i < 10 {
			msg := "sku drift"
			m.LastError = &msg
		}
	}
	tracker, _ := newTestTracker(fakes)

	// Exactly 10% does not cross the strict threshold
	health, err := tracker.ComputeHealth(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
}

func TestComputeHealthOfflineWhenConnectionPaused(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusPaused)
	tracker, _ := newTestTracker(fakes)

	health, err := tracker.ComputeHealth(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusOffline, health.Status)
}

func TestComputeHealthRebuildsErrorCountFromActivity(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, store := newTestTracker(fakes)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		tracker.RecordSync(ctx, conn.ID, domain.SyncKindProduct, fmt.Errorf("failure %d", i))
	}

	// Evict the cached snapshot; the activity trail must be enough
	require.NoError(t, store.Delete(ctx, healthKey(conn.ID)))

	health, err := tracker.ComputeHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, health.ErrorCount24h)
	assert.Equal(t, domain.HealthStatusError, health.Status)
}

func TestErrorCountSurvivesSnapshotExpiry(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, store := newTestTracker(fakes)
	ctx := context.Background()

	// Each failure lands after the previous snapshot's TTL lapsed; the
	// 24h window must accumulate across expiries, not reset per window.
	base := time.Now()
	for i := 0; i < 12; i++ {
		at := base.Add(time.Duration(i) * 2 * time.Minute)
		tracker.now = func() time.Time { return at }
		store.SetClock(func() time.Time { return at })
		tracker.RecordSync(ctx, conn.ID, domain.SyncKindInventory, fmt.Errorf("failure %d", i))
	}

	health, err := tracker.GetHealth(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, health.ErrorCount24h)
	assert.Equal(t, domain.HealthStatusError, health.Status)
}

func TestGetActivityNewestFirstAndLimited(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tracker.Append(ctx, domain.ActivityEntry{
			ConnectionID: conn.ID,
			Type:         domain.ActivityTypeSyncSuccess,
			Message:      fmt.Sprintf("entry %d", i),
		})
	}

	entries, err := tracker.GetActivity(ctx, conn.ID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 4", entries[0].Message)
	assert.Equal(t, "entry 2", entries[2].Message)
}

func TestActivityRingIsBounded(t *testing.T) {
	fakes := newFakeRepos()
	conn := fakes.addConnection(domain.TierFree, domain.ConnectionStatusActive)
	tracker, _ := newTestTracker(fakes)
	tracker.cfg.ActivityMaxCount = 10
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		tracker.Append(ctx, domain.ActivityEntry{
			ConnectionID: conn.ID,
			Type:         domain.ActivityTypeSyncSuccess,
			Message:      fmt.Sprintf("entry %d", i),
		})
	}

	entries, err := tracker.GetActivity(ctx, conn.ID, 100)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	assert.Equal(t, "entry 24", entries[0].Message)
	assert.Equal(t, "entry 15", entries[9].Message)
}
