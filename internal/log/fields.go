package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldSuccess        = "success"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldRuleID         = "rule_id"
	FieldRuleTitle      = "rule_title"
	FieldFrequency      = "frequency"
	FieldKind           = "kind"
	FieldAmountCents    = "amount_cents"
	FieldCategory       = "category"
	FieldNextOccurrence = "next_occurrence"
	FieldDueAt          = "due_at"
	FieldDaysBefore     = "days_before"
	FieldTransactionID  = "transaction_id"
	FieldProcessed      = "processed"
	FieldFailed         = "failed"
	FieldSheetsRef      = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRules     = "rules"
	ComponentProcessor = "processor"
	ComponentReminder  = "reminder"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpExecute  = "execute"
	OpAdvance  = "advance"
	OpRaise    = "raise"
	OpRetract  = "retract"
	OpMirror   = "mirror"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
