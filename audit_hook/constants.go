package audithook

// Action constants for audit events.
const (
	// Engine actions
	ActionEngineStarted = "engine.started"
	ActionEngineStopped = "engine.stopped"

	// Cycle actions
	ActionCycleStarted   = "cycle.started"
	ActionCycleCompleted = "cycle.completed"

	// Ledger actions
	ActionReadingAppended = "reading.appended"

	// Remote actions
	ActionReadingMinted = "reading.minted"

	// Item actions
	ActionAttemptFailed  = "attempt.failed"
	ActionItemReconciled = "item.reconciled"
	ActionItemAbandoned  = "item.abandoned"
)

// Resource constants for audit events.
const (
	ResourceEngine = "engine"
	ResourceCycle  = "cycle"
	ResourceRecord = "record"
	ResourceMint   = "mint"
	ResourceItem   = "item"
)

// Category constants for audit events.
const (
	CategoryLifecycle = "lifecycle"
	CategoryLedger    = "ledger"
	CategoryRemote    = "remote"
	CategoryPipeline  = "pipeline"
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
