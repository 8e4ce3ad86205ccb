package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldSiteID     = "site_id"
	FieldSection    = "section"
	FieldTeam       = "team"
	FieldEntryID    = "entry_id"
	FieldEntryKind  = "entry_kind"
	FieldEntryDate  = "entry_date"
	FieldAmount     = "amount"
	FieldFromDate   = "from_date"
	FieldToDate     = "to_date"
	FieldCount      = "count"
	FieldMessageID  = "message_id"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSites     = "sites"
	ComponentReports   = "reports"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentLedger    = "ledger"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentTemplate  = "template"
)

const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpBootstrap = "bootstrap"
	OpFilter    = "filter"
	OpExport    = "export"
	OpReset     = "reset"
	OpRender    = "render"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields is a builder for structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithSite(siteID int64) LogFields {
	f[FieldSiteID] = siteID
	return f
}

// WithEntry adds the identifying fields of a recorded entry.
func (f LogFields) WithEntry(id int64, kind, name, date, amount string) LogFields {
	f[FieldEntryID] = id
	f[FieldEntryKind] = kind
	f[FieldEntryDate] = date
	f[FieldAmount] = amount
	if kind == "team" {
		f[FieldTeam] = name
	} else {
		f[FieldSection] = name
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
