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
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldBookID     = "book_id"
	FieldUserID     = "user_id"
	FieldLoanID     = "loan_id"
	FieldCopies     = "copies"
	FieldFile       = "file"
	FieldCollection = "collection"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLibrary    = "library"
	ComponentRepository = "repository"
	ComponentReports    = "reports"
	ComponentStorage    = "storage"
	ComponentBackend    = "backend"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpLoan     = "create_loan"
	OpReturn   = "return_loan"
	OpLoad     = "load"
	OpSave     = "save"
	OpExport   = "export"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithLoan adds the ids a loan ties together.
func (f LogFields) WithLoan(loanID, userID, bookID string) LogFields {
	f[FieldLoanID] = loanID
	f[FieldUserID] = userID
	f[FieldBookID] = bookID
	return f
}

// WithFile adds the collection and file a persistence step touched.
func (f LogFields) WithFile(collection, path string) LogFields {
	f[FieldCollection] = collection
	f[FieldFile] = path
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
