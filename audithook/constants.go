package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated  = "account.created"
	ActionAccountClosed   = "account.closed"
	ActionMetadataUpdated = "account.metadata_updated"

	// Transaction actions
	ActionTransactionCommitted = "transaction.committed"
	ActionTransactionReverted  = "transaction.reverted"
	ActionCommitRejected       = "transaction.rejected"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
)

// Category constants for audit events.
const (
	CategoryLedger     = "ledger"
	CategoryCompliance = "compliance"
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
)
