package audithook

// Action constants for audit events.
const (
	// Role actions
	ActionRoleRegistered = "role.registered"

	// Service actions
	ActionServiceCreated     = "service.created"
	ActionServiceDeactivated = "service.deactivated"

	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionToppedUp = "subscription.topped_up"
	ActionCancelRequested      = "subscription.cancel_requested"
	ActionSubscriptionCanceled = "subscription.canceled"
	ActionInsufficientFunds    = "subscription.insufficient_funds"

	// Payment actions
	ActionPaymentExecuted = "payment.executed"

	// Stream actions
	ActionStreamCreated  = "stream.created"
	ActionStreamClaimed  = "stream.claimed"
	ActionStreamCanceled = "stream.canceled"
)

// Resource constants for audit events.
const (
	ResourceRole         = "role"
	ResourceService      = "service"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceStream       = "stream"
)

// Category constants for audit events.
const (
	CategoryIdentity     = "identity"
	CategoryCatalog      = "catalog"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryStream       = "stream"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
