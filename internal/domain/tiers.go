package domain

// Tier is a subscription tier. Order matters: each tier includes the
// caps and features of the tiers below it.
type Tier string

const (
	TierFree        Tier = "FREE"
	TierStarter     Tier = "STARTER"
	TierGrowth      Tier = "GROWTH"
	TierPro         Tier = "PRO"
	TierMarketplace Tier = "MARKETPLACE"
)

// TierOrder lists tiers from lowest to highest
var TierOrder = []Tier{TierFree, TierStarter, TierGrowth, TierPro, TierMarketplace}

// IsValid checks if the tier is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierStarter, TierGrowth, TierPro, TierMarketplace:
		return true
	default:
		return false
	}
}

// Rank returns the tier's position in TierOrder, -1 if unknown
func (t Tier) Rank() int {
	for i, tier := range TierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// UsageResource is one capped resource dimension
type UsageResource string

const (
	ResourceConnections    UsageResource = "connections"
	ResourceMappedProducts UsageResource = "mapped_products"
	ResourceOrdersMonth    UsageResource = "orders_per_month"
	ResourceOrderPushes    UsageResource = "order_pushes_per_month"
	ResourceMetafieldDefs  UsageResource = "metafield_definitions"
)

// UsageResources lists every capped dimension, in report order
var UsageResources = []UsageResource{
	ResourceConnections,
	ResourceMappedProducts,
	ResourceOrdersMonth,
	ResourceOrderPushes,
	ResourceMetafieldDefs,
}

// Feature is a tier-gated capability
type Feature string

const (
	FeatureAutoOrderPush  Feature = "auto_order_push"
	FeaturePriceSync      Feature = "price_sync"
	FeatureMultiLocation  Feature = "multi_location"
	FeatureAdvancedFields Feature = "advanced_fields"
	FeaturePayouts        Feature = "payouts"
	FeatureMarketplace    Feature = "marketplace"
)

// Features lists every gated capability, in report order
var Features = []Feature{
	FeatureAutoOrderPush,
	FeaturePriceSync,
	FeatureMultiLocation,
	FeatureAdvancedFields,
	FeaturePayouts,
	FeatureMarketplace,
}

// TierLimits holds the hard caps for one tier. Unlimited is modeled as
// a sufficiently large cap rather than a sentinel so percentage math
// stays uniform.
type TierLimits struct {
	Connections    int
	MappedProducts int
	OrdersMonth    int
	OrderPushes    int
	MetafieldDefs  int
	Features       map[Feature]bool
}

// Cap returns the limit for one resource dimension
func (l TierLimits) Cap(resource UsageResource) int {
	switch resource {
	case ResourceConnections:
		return l.Connections
	case ResourceMappedProducts:
		return l.MappedProducts
	case ResourceOrdersMonth:
		return l.OrdersMonth
	case ResourceOrderPushes:
		return l.OrderPushes
	case ResourceMetafieldDefs:
		return l.MetafieldDefs
	default:
		return 0
	}
}

// HasFeature reports whether the tier includes a capability
func (l TierLimits) HasFeature(f Feature) bool {
	return l.Features[f]
}

var tierLimits = map[Tier]TierLimits{
	TierFree: {
		Connections:    1,
		MappedProducts: 25,
		OrdersMonth:    10,
		OrderPushes:    10,
		MetafieldDefs:  0,
		Features:       map[Feature]bool{},
	},
	TierStarter: {
		Connections:    3,
		MappedProducts: 250,
		OrdersMonth:    100,
		OrderPushes:    100,
		MetafieldDefs:  5,
		Features: map[Feature]bool{
			FeaturePriceSync: true,
		},
	},
	TierGrowth: {
		Connections:    10,
		MappedProducts: 2500,
		OrdersMonth:    1000,
		OrderPushes:    1000,
		MetafieldDefs:  25,
		Features: map[Feature]bool{
			FeaturePriceSync:     true,
			FeatureAutoOrderPush: true,
			FeatureMultiLocation: true,
		},
	},
	TierPro: {
		Connections:    50,
		MappedProducts: 25000,
		OrdersMonth:    10000,
		OrderPushes:    10000,
		MetafieldDefs:  100,
		Features: map[Feature]bool{
			FeaturePriceSync:      true,
			FeatureAutoOrderPush:  true,
			FeatureMultiLocation:  true,
			FeatureAdvancedFields: true,
			FeaturePayouts:        true,
		},
	},
	TierMarketplace: {
		Connections:    500,
		MappedProducts: 250000,
		OrdersMonth:    100000,
		OrderPushes:    100000,
		MetafieldDefs:  500,
		Features: map[Feature]bool{
			FeaturePriceSync:      true,
			FeatureAutoOrderPush:  true,
			FeatureMultiLocation:  true,
			FeatureAdvancedFields: true,
			FeaturePayouts:        true,
			FeatureMarketplace:    true,
		},
	},
}

// LimitsFor returns the caps for a tier, falling back to FREE for
// unknown tiers so enforcement fails closed.
func LimitsFor(tier Tier) TierLimits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierFree]
}
