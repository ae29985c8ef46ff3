package logger

// Field keys shared by every package so log lines can be joined on them.
const (
	FieldComponent     = "component"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
	FieldRunID         = "run_id"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldBinding       = "binding"
	FieldBindingID     = "binding_id"
	FieldStage         = "stage"
	FieldTopic         = "topic"
)

// Fields builds a field map from alternating key-value pairs. Non-string
// keys and a trailing key without a value are dropped.
//
//	logger.Info("Topic created", logger.Fields("partitions", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2+1)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrFields is Fields with the error message under FieldError.
func ErrFields(err error, kvs ...interface{}) map[string]interface{} {
	return WithError(Fields(kvs...), err)
}

// WithError sets FieldError on fields, allocating the map when nil.
// A nil err leaves fields unchanged.
func WithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	if err != nil {
		fields[FieldError] = err.Error()
	}
	return fields
}
