package log

// Field names shared across components.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldPeriodKey  = "period_key"
	FieldSeq        = "seq"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStore   = "store"
	ComponentLedger  = "ledger"
	ComponentSync    = "sync"
	ComponentSession = "session"
	ComponentBus     = "bus"
	ComponentMirror  = "mirror"
)
