package log

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRunID           = "run_id"
	FieldOperation       = "operation"
	FieldError           = "error"
	FieldErrorType       = "error_type"
	FieldBusinessDate    = "business_date"
	FieldTime            = "time_hhmm"
	FieldMonth           = "month"
	FieldVenue           = "venue"
	FieldRecords         = "records"
	FieldDroppedSales    = "dropped_sales"
	FieldDroppedDishes   = "dropped_dishes"
	FieldUnmatchedDishes = "unmatched_dishes"
	FieldTotalRevenue    = "total_revenue"
	FieldTotalOrders     = "total_orders"
	FieldPlanRevenue     = "plan_revenue"
	FieldPlanOrders      = "plan_orders"
	FieldPath            = "path"
	FieldAttempt         = "attempt"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldCatalogVersion  = "catalog_version"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentIiko      = "iiko"
	ComponentAggregate = "aggregate"
	ComponentPlan      = "plan"
	ComponentSnapshot  = "snapshot"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
	ComponentExport    = "export"
	ComponentCache     = "cache"
)

// Operations defines standard operation names
const (
	OpFetch   = "fetch"
	OpAuth    = "auth"
	OpRefresh = "refresh"
	OpWrite   = "write"
	OpArchive = "archive"
	OpPublish = "publish"
	OpAppend  = "append"
	OpExport  = "export"
	OpStartup = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeParse         = "parse_error"
	ErrorTypeIO            = "io_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRunID(id string) LogFields {
	f[FieldRunID] = id
	return f
}

// WithError adds the error message and its category.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithDropped adds the aggregation drop counters.
func (f LogFields) WithDropped(sales, dishes, unmatched int) LogFields {
	f[FieldDroppedSales] = sales
	f[FieldDroppedDishes] = dishes
	f[FieldUnmatchedDishes] = unmatched
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
