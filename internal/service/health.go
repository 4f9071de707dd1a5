package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/cache"
	"github.com/shopbridge/syncengine/internal/config"
	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
)

const (
	// errorThreshold: more than this many errors in 24h escalates a
	// connection from DEGRADED to ERROR
	errorThreshold = 10
	// errorMappingRatio: ERROR when errored mappings exceed this share
	// of active mappings
	errorMappingRatio = 0.10
)

// HealthTracker consumes sync outcomes and rate-limit signals, derives
// connection health and maintains the bounded activity log. The cached
// snapshot is best-effort: last write wins, and ComputeHealth rebuilds
// it from source data after any eviction.
type HealthTracker struct {
	repos  *repository.Repositories
	store  cache.Store
	cfg    config.SyncConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewHealthTracker creates a new health tracker
func NewHealthTracker(repos *repository.Repositories, store cache.Store, cfg config.SyncConfig, logger *zap.Logger) *HealthTracker {
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = time.Minute
	}
	if cfg.ActivityMaxCount <= 0 {
		cfg.ActivityMaxCount = 100
	}
	if cfg.ActivityMaxAge <= 0 {
		cfg.ActivityMaxAge = 30 * 24 * time.Hour
	}
	return &HealthTracker{
		repos:  repos,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func healthKey(connectionID uuid.UUID) string {
	return fmt.Sprintf("health:%s", connectionID)
}

func activityKey(connectionID uuid.UUID) string {
	return fmt.Sprintf("activity:%s", connectionID)
}

// RecordSync updates health state after one sync attempt
func (t *HealthTracker) RecordSync(ctx context.Context, connectionID uuid.UUID, kind domain.SyncKind, syncErr error) {
	health := t.loadOrInit(ctx, connectionID)
	now := t.now()
	health.LastSyncAt[kind] = now

	entry := domain.ActivityEntry{
		ConnectionID: connectionID,
		ResourceType: string(kind),
	}

	if syncErr != nil {
		health.ErrorCount24h++
		if health.ErrorCount24h > errorThreshold {
			health.Status = domain.HealthStatusError
		} else if health.Status != domain.HealthStatusError {
			health.Status = domain.HealthStatusDegraded
		}
		entry.Type = domain.ActivityTypeSyncError
		entry.Message = syncErr.Error()
	} else {
		if health.Status == domain.HealthStatusDegraded && health.ErrorCount24h <= 1 {
			health.Status = domain.HealthStatusHealthy
		}
		entry.Type = domain.ActivityTypeSyncSuccess
		entry.Message = fmt.Sprintf("%s sync completed", kind)
	}

	t.save(ctx, connectionID, health)
	t.Append(ctx, entry)
}

// RecordRateLimit marks the connection throttled until the delay
// elapses. Throttling forces DEGRADED regardless of other signals.
func (t *HealthTracker) RecordRateLimit(ctx context.Context, connectionID uuid.UUID, delay time.Duration) {
	health := t.loadOrInit(ctx, connectionID)
	until := t.now().Add(delay)
	health.Throttled = true
	health.ThrottledUntil = &until
	if health.Status != domain.HealthStatusError {
		health.Status = domain.HealthStatusDegraded
	}

	t.save(ctx, connectionID, health)
	t.Append(ctx, domain.ActivityEntry{
		ConnectionID: connectionID,
		Type:         domain.ActivityTypeRateLimit,
		Message:      fmt.Sprintf("rate limited, backing off %s", delay),
	})
}

// RecordMappingError records a per-mapping failure (SKU drift, option
// mismatch, unsupported shape). It never aborts the batch.
func (t *HealthTracker) RecordMappingError(ctx context.Context, connectionID uuid.UUID, entryType domain.ActivityType, resourceID, message string) {
	health := t.loadOrInit(ctx, connectionID)
	health.ErrorCount24h++
	if health.ErrorCount24h > errorThreshold {
		health.Status = domain.HealthStatusError
	} else if health.Status != domain.HealthStatusError {
		health.Status = domain.HealthStatusDegraded
	}

	t.save(ctx, connectionID, health)
	t.Append(ctx, domain.ActivityEntry{
		ConnectionID: connectionID,
		Type:         entryType,
		ResourceType: "product_mapping",
		ResourceID:   resourceID,
		Message:      message,
	})
}

// Append writes one entry to the bounded activity ring
func (t *HealthTracker) Append(ctx context.Context, entry domain.ActivityEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.logger.Error("Failed to marshal activity entry", zap.Error(err))
		return
	}
	if err := t.store.PushList(ctx, activityKey(entry.ConnectionID), string(data), t.cfg.ActivityMaxCount, t.cfg.ActivityMaxAge); err != nil {
		// Diagnostic trail only, losing an entry is tolerable
		t.logger.Warn("Failed to append activity entry", zap.Error(err))
	}
}

// GetActivity returns up to limit entries, newest first
func (t *HealthTracker) GetActivity(ctx context.Context, connectionID uuid.UUID, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > t.cfg.ActivityMaxCount {
		limit = t.cfg.ActivityMaxCount
	}

	raw, err := t.store.RangeList(ctx, activityKey(connectionID), limit)
	if err != nil {
		return nil, err
	}

	cutoff := t.now().Add(-t.cfg.ActivityMaxAge)
	entries := make([]domain.ActivityEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.ActivityEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			t.logger.Warn("Skipping malformed activity entry", zap.Error(err))
			continue
		}
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetHealth returns the cached snapshot, recomputing on a miss
func (t *HealthTracker) GetHealth(ctx context.Context, connectionID uuid.UUID) (*domain.ConnectionHealth, error) {
	if cached, ok := t.loadCached(ctx, connectionID); ok {
		return cached, nil
	}
	return t.ComputeHealth(ctx, connectionID)
}

// ComputeHealth derives the health snapshot from source data alone,
// independent of any incremental updates, and refreshes the cache.
func (t *HealthTracker) ComputeHealth(ctx context.Context, connectionID uuid.UUID) (*domain.ConnectionHealth, error) {
	conn, err := t.repos.Connection.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	counts, err := t.repos.ProductMapping.CountByStatus(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	errored, err := t.repos.ProductMapping.CountErrored(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	health := newHealth(connectionID)
	health.MappingCounts = counts
	health.ErrorMappings = errored
	health.ComputedAt = t.now()

	recentErrors := t.countRecentErrors(ctx, connectionID)
	health.ErrorCount24h = recentErrors

	active := counts[domain.MappingStatusActive]

	switch {
	case conn.Status != domain.ConnectionStatusActive:
		health.Status = domain.HealthStatusOffline
	case recentErrors > errorThreshold,
		active > 0 && float64(errored)/float64(active) > errorMappingRatio:
		health.Status = domain.HealthStatusError
	case recentErrors > 0 || errored > 0:
		health.Status = domain.HealthStatusDegraded
	default:
		health.Status = domain.HealthStatusHealthy
	}

	t.save(ctx, connectionID, health)
	return health, nil
}

// countRecentErrors counts error-class activity entries from the last
// 24 hours. The activity trail is the audit source the snapshot can
// always be rebuilt from.
func (t *HealthTracker) countRecentErrors(ctx context.Context, connectionID uuid.UUID) int {
	entries, err := t.GetActivity(ctx, connectionID, t.cfg.ActivityMaxCount)
	if err != nil {
		return 0
	}

	cutoff := t.now().Add(-24 * time.Hour)
	count := 0
	for _, entry := range entries {
		if entry.CreatedAt.Before(cutoff) {
			continue
		}
		switch entry.Type {
		case domain.ActivityTypeSyncError, domain.ActivityTypeMappingError, domain.ActivityTypeSKUDrift:
			count++
		}
	}
	return count
}

func newHealth(connectionID uuid.UUID) *domain.ConnectionHealth {
	return &domain.ConnectionHealth{
		ConnectionID:  connectionID,
		Status:        domain.HealthStatusHealthy,
		LastSyncAt:    make(map[domain.SyncKind]time.Time),
		MappingCounts: make(map[domain.MappingStatus]int),
	}
}

func (t *HealthTracker) loadCached(ctx context.Context, connectionID uuid.UUID) (*domain.ConnectionHealth, bool) {
	raw, ok, err := t.store.Get(ctx, healthKey(connectionID))
	if err != nil || !ok {
		return nil, false
	}

	var health domain.ConnectionHealth
	if err := json.Unmarshal([]byte(raw), &health); err != nil {
		return nil, false
	}
	if health.LastSyncAt == nil {
		health.LastSyncAt = make(map[domain.SyncKind]time.Time)
	}
	if health.MappingCounts == nil {
		health.MappingCounts = make(map[domain.MappingStatus]int)
	}
	// Expire the throttle flag lazily
	if health.Throttled && health.ThrottledUntil != nil && t.now().After(*health.ThrottledUntil) {
		health.Throttled = false
		health.ThrottledUntil = nil
	}
	return &health, true
}

// loadOrInit returns the cached snapshot or rebuilds one. A cache miss
// must not reset the 24-hour error window, so the rebuild always counts
// recent errors from the activity trail before the caller increments.
func (t *HealthTracker) loadOrInit(ctx context.Context, connectionID uuid.UUID) *domain.ConnectionHealth {
	if cached, ok := t.loadCached(ctx, connectionID); ok {
		return cached
	}
	if health, err := t.ComputeHealth(ctx, connectionID); err == nil {
		return health
	}
	health := newHealth(connectionID)
	health.ErrorCount24h = t.countRecentErrors(ctx, connectionID)
	if health.ErrorCount24h > errorThreshold {
		health.Status = domain.HealthStatusError
	} else if health.ErrorCount24h > 0 {
		health.Status = domain.HealthStatusDegraded
	}
	return health
}

func (t *HealthTracker) save(ctx context.Context, connectionID uuid.UUID, health *domain.ConnectionHealth) {
	health.ComputedAt = t.now()
	data, err := json.Marshal(health)
	if err != nil {
		t.logger.Error("Failed to marshal health snapshot", zap.Error(err))
		return
	}
	if err := t.store.Set(ctx, healthKey(connectionID), string(data), t.cfg.HealthTTL); err != nil {
		t.logger.Warn("Failed to cache health snapshot", zap.Error(err))
	}
}
