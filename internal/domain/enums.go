package domain

// ConnectionStatus represents the status of a supplier-retailer connection
type ConnectionStatus string

const (
	ConnectionStatusPendingInvite ConnectionStatus = "PENDING_INVITE"
	ConnectionStatusActive        ConnectionStatus = "ACTIVE"
	ConnectionStatusPaused        ConnectionStatus = "PAUSED"
	ConnectionStatusTerminated    ConnectionStatus = "TERMINATED"
)

// IsValid checks if the connection status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusPendingInvite,
		ConnectionStatusActive,
		ConnectionStatusPaused,
		ConnectionStatusTerminated:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s ConnectionStatus) CanTransitionTo(newStatus ConnectionStatus) bool {
	switch s {
	case ConnectionStatusPendingInvite:
		return newStatus == ConnectionStatusActive ||
			newStatus == ConnectionStatusTerminated
	case ConnectionStatusActive:
		return newStatus == ConnectionStatusPaused ||
			newStatus == ConnectionStatusTerminated
	case ConnectionStatusPaused:
		return newStatus == ConnectionStatusActive ||
			newStatus == ConnectionStatusTerminated
	case ConnectionStatusTerminated:
		return false // Terminal state
	default:
		return false
	}
}

// MappingStatus represents the status of a product mapping
type MappingStatus string

const (
	MappingStatusUnsynced    MappingStatus = "UNSYNCED"
	MappingStatusActive      MappingStatus = "ACTIVE"
	MappingStatusPaused      MappingStatus = "PAUSED"
	MappingStatusReplaced    MappingStatus = "REPLACED"
	MappingStatusUnsupported MappingStatus = "UNSUPPORTED"
)

// IsValid checks if the mapping status is valid
func (s MappingStatus) IsValid() bool {
	switch s {
	case MappingStatusUnsynced,
		MappingStatusActive,
		MappingStatusPaused,
		MappingStatusReplaced,
		MappingStatusUnsupported:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is retained for audit only
func (s MappingStatus) IsTerminal() bool {
	return s == MappingStatusReplaced || s == MappingStatusUnsupported
}

// CanTransitionTo checks if a mapping status transition is valid
func (s MappingStatus) CanTransitionTo(newStatus MappingStatus) bool {
	switch s {
	case MappingStatusUnsynced:
		return newStatus == MappingStatusActive ||
			newStatus == MappingStatusReplaced ||
			newStatus == MappingStatusUnsupported
	case MappingStatusActive:
		return newStatus == MappingStatusPaused ||
			newStatus == MappingStatusReplaced ||
			newStatus == MappingStatusUnsupported
	case MappingStatusPaused:
		return newStatus == MappingStatusActive ||
			newStatus == MappingStatusReplaced ||
			newStatus == MappingStatusUnsupported
	case MappingStatusReplaced, MappingStatusUnsupported:
		return false // Terminal states
	default:
		return false
	}
}

// MarkupType represents how retailer prices are derived from supplier prices
type MarkupType string

const (
	MarkupTypePercentage  MarkupType = "PERCENTAGE"
	MarkupTypeFixedAmount MarkupType = "FIXED_AMOUNT"
	MarkupTypeCustom      MarkupType = "CUSTOM"
)

// IsValid checks if the markup type is valid
func (m MarkupType) IsValid() bool {
	switch m {
	case MarkupTypePercentage, MarkupTypeFixedAmount, MarkupTypeCustom:
		return true
	default:
		return false
	}
}

// ConflictPolicy represents how sync conflicts between the two stores are resolved
type ConflictPolicy string

const (
	ConflictPolicySupplierWins ConflictPolicy = "SUPPLIER_WINS"
	ConflictPolicyRetailerWins ConflictPolicy = "RETAILER_WINS"
	ConflictPolicyReviewQueue  ConflictPolicy = "REVIEW_QUEUE"
)

// IsValid checks if the conflict policy is valid
func (p ConflictPolicy) IsValid() bool {
	switch p {
	case ConflictPolicySupplierWins, ConflictPolicyRetailerWins, ConflictPolicyReviewQueue:
		return true
	default:
		return false
	}
}

// HealthStatus represents the derived health of a connection
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "HEALTHY"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusError    HealthStatus = "ERROR"
	HealthStatusOffline  HealthStatus = "OFFLINE"
)

// SyncKind identifies which synchronization pipeline an event belongs to
type SyncKind string

const (
	SyncKindProduct   SyncKind = "product"
	SyncKindInventory SyncKind = "inventory"
	SyncKindPrice     SyncKind = "price"
	SyncKindOrder     SyncKind = "order"
)

// ActivityType classifies one entry in the connection activity log
type ActivityType string

const (
	ActivityTypeSyncSuccess        ActivityType = "SYNC_SUCCESS"
	ActivityTypeSyncError          ActivityType = "SYNC_ERROR"
	ActivityTypeRateLimit          ActivityType = "RATE_LIMIT"
	ActivityTypeMappingError       ActivityType = "MAPPING_ERROR"
	ActivityTypeSKUDrift           ActivityType = "SKU_DRIFT"
	ActivityTypeOrderForwarded     ActivityType = "ORDER_FORWARDED"
	ActivityTypeOrderForwardFailed ActivityType = "ORDER_FORWARD_FAILED"
)

// BulkJobStatus represents the state of an externally-executed bulk operation
type BulkJobStatus string

const (
	BulkJobStatusCreated   BulkJobStatus = "CREATED"
	BulkJobStatusRunning   BulkJobStatus = "RUNNING"
	BulkJobStatusCompleted BulkJobStatus = "COMPLETED"
	BulkJobStatusFailed    BulkJobStatus = "FAILED"
	BulkJobStatusCanceling BulkJobStatus = "CANCELING"
	BulkJobStatusCanceled  BulkJobStatus = "CANCELED"
	BulkJobStatusExpired   BulkJobStatus = "EXPIRED"
)

// IsTerminal reports whether the job will make no further progress
func (s BulkJobStatus) IsTerminal() bool {
	switch s {
	case BulkJobStatusCompleted, BulkJobStatusFailed, BulkJobStatusCanceled, BulkJobStatusExpired:
		return true
	default:
		return false
	}
}

// OrderStatus represents the status of a forwarded retailer order
type OrderStatus string

const (
	OrderStatusPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
	OrderStatusConfirmed           OrderStatus = "CONFIRMED"
	OrderStatusRejected            OrderStatus = "REJECTED"
	OrderStatusCancelled           OrderStatus = "CANCELLED"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPendingConfirmation,
		OrderStatusConfirmed,
		OrderStatusRejected,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}
