package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldCategoryID = "category_id"
	FieldTxnID      = "transaction_id"
	FieldAmount     = "amount"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldQuarter    = "quarter"
	FieldPeriod     = "period"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentSnapshot  = "snapshot"
	ComponentAuth      = "auth"
	ComponentAnalytics = "analytics"
	ComponentEvents    = "events"
	ComponentTxn       = "transaction"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSave     = "save"
	OpRestore  = "restore"
	OpRegister = "register"
	OpLogin    = "login"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
