package log

// Shared attribute keys and component names so log lines stay greppable
// across packages.
const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
	FieldRequestID = "request_id"
	FieldPath      = "path"

	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentLedger    = "ledger"
	ComponentStore     = "store"
	ComponentWorker    = "worker"
	ComponentDashboard = "dashboard"
)
