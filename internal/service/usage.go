package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopbridge/syncengine/internal/domain"
	"github.com/shopbridge/syncengine/internal/repository"
)

// warningThreshold marks a dimension as WARNING in the usage report
const warningThreshold = 0.8

// UsageStatus is the aggregate state of a usage report
type UsageStatus string

const (
	UsageStatusOK      UsageStatus = "OK"
	UsageStatusWarning UsageStatus = "WARNING"
	UsageStatusBlocked UsageStatus = "BLOCKED"
)

// UsageCheck is the allow/deny decision for one resource dimension
type UsageCheck struct {
	Resource      domain.UsageResource `json:"resource"`
	Allowed       bool                 `json:"allowed"`
	CurrentUsage  int                  `json:"current_usage"`
	Limit         int                  `json:"limit"`
	PercentUsed   float64              `json:"percent_used"`
	IsOverLimit   bool                 `json:"is_over_limit"`
	SuggestedTier domain.Tier          `json:"suggested_tier,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

// UsageReport aggregates every dimension plus feature flags
type UsageReport struct {
	Shop      string                  `json:"shop"`
	Tier      domain.Tier             `json:"tier"`
	Status    UsageStatus             `json:"status"`
	Resources []UsageCheck            `json:"resources"`
	Features  map[domain.Feature]bool `json:"features"`
}

// UsageLedger computes current usage against tier caps and renders
// allow/deny decisions. Nothing is persisted; every check is computed
// from live counts so enforcement and reporting cannot drift.
type UsageLedger struct {
	repos  *repository.Repositories
	logger *zap.Logger
	now    func() time.Time
}

// NewUsageLedger creates a new usage ledger
func NewUsageLedger(repos *repository.Repositories, logger *zap.Logger) *UsageLedger {
	return &UsageLedger{
		repos:  repos,
		logger: logger,
		now:    time.Now,
	}
}

func (l *UsageLedger) currentUsage(ctx context.Context, shop string, resource domain.UsageResource) (int, error) {
	switch resource {
	case domain.ResourceConnections:
		return l.repos.Connection.CountByShop(ctx, shop)
	case domain.ResourceMappedProducts:
		return l.repos.ProductMapping.CountMappedByShop(ctx, shop)
	case domain.ResourceOrdersMonth:
		return l.repos.ForwardedOrder.CountByShopSince(ctx, shop, monthStart(l.now()))
	case domain.ResourceOrderPushes:
		return l.repos.ForwardedOrder.CountPushedByShopSince(ctx, shop, monthStart(l.now()))
	case domain.ResourceMetafieldDefs:
		return l.repos.MetafieldDefinition.CountByShop(ctx, shop)
	default:
		return 0, fmt.Errorf("unknown usage resource: %s", resource)
	}
}

// CheckUsage decides whether the shop may add delta units of a
// resource. Enforcement runs before the mutation; a failed count
// lookup denies (fail closed).
func (l *UsageLedger) CheckUsage(ctx context.Context, shop string, tier domain.Tier, resource domain.UsageResource, delta int) (*UsageCheck, error) {
	current, err := l.currentUsage(ctx, shop, resource)
	if err != nil {
		l.logger.Error("Usage count failed, denying",
			zap.String("shop", shop),
			zap.String("resource", string(resource)),
			zap.Error(err),
		)
		return nil, err
	}

	limits := domain.LimitsFor(tier)
	limit := limits.Cap(resource)

	check := &UsageCheck{
		Resource:     resource,
		CurrentUsage: current,
		Limit:        limit,
		IsOverLimit:  current > limit,
	}
	if limit > 0 {
		check.PercentUsed = float64(current) / float64(limit) * 100
	} else {
		check.PercentUsed = 100
	}

	check.Allowed = current+delta <= limit
	if !check.Allowed {
		check.SuggestedTier = suggestTier(tier, resource, current+delta)
		check.Reason = reasonFor(resource)
	}
	return check, nil
}

// HasFeature reports whether a tier includes a gated capability.
// Checked before the workflow branch, never only in the UI.
func (l *UsageLedger) HasFeature(tier domain.Tier, feature domain.Feature) bool {
	return domain.LimitsFor(tier).HasFeature(feature)
}

// GetUsageReport aggregates all dimensions and feature flags
func (l *UsageLedger) GetUsageReport(ctx context.Context, shop string, tier domain.Tier) (*UsageReport, error) {
	report := &UsageReport{
		Shop:     shop,
		Tier:     tier,
		Status:   UsageStatusOK,
		Features: make(map[domain.Feature]bool, len(domain.Features)),
	}

	limits := domain.LimitsFor(tier)
	for _, feature := range domain.Features {
		report.Features[feature] = limits.HasFeature(feature)
	}

	for _, resource := range domain.UsageResources {
		check, err := l.CheckUsage(ctx, shop, tier, resource, 0)
		if err != nil {
			return nil, err
		}
		report.Resources = append(report.Resources, *check)

		if check.CurrentUsage > check.Limit {
			report.Status = UsageStatusBlocked
		} else if report.Status == UsageStatusOK && check.Limit > 0 &&
			float64(check.CurrentUsage) >= float64(check.Limit)*warningThreshold {
			report.Status = UsageStatusWarning
		}
	}

	return report, nil
}

// suggestTier returns the lowest tier above current whose cap for the
// resource accommodates the requested usage level
func suggestTier(current domain.Tier, resource domain.UsageResource, needed int) domain.Tier {
	rank := current.Rank()
	for _, tier := range domain.TierOrder {
		if tier.Rank() <= rank {
			continue
		}
		if domain.LimitsFor(tier).Cap(resource) >= needed {
			return tier
		}
	}
	// Nothing accommodates it; point at the top tier
	return domain.TierOrder[len(domain.TierOrder)-1]
}

func reasonFor(resource domain.UsageResource) string {
	switch resource {
	case domain.ResourceConnections:
		return "connection limit reached"
	case domain.ResourceMappedProducts:
		return "product limit reached"
	case domain.ResourceOrdersMonth:
		return "monthly order limit reached"
	case domain.ResourceOrderPushes:
		return "monthly order push limit reached"
	case domain.ResourceMetafieldDefs:
		return "metafield definition limit reached"
	default:
		return "limit reached"
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
