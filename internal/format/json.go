package format

import (
	"encoding/json"

	"emberlog/internal/record"
)

// reservedJSONKeys are the top-level field names the JSON formatter always
// owns; a context binding with a colliding key is emitted as "ctx_"+key
// instead (spec.md §6).
var reservedJSONKeys = map[string]bool{
	"timestamp": true, "level": true, "message": true,
	"module": true, "function": true, "file": true, "line": true,
	"trace_id": true, "span_id": true, "correlation_id": true,
}

// JSONConfig configures a JSONFormatter.
type JSONConfig struct {
	// TimestampISO, if true, renders timestamp as an ISO-8601 string
	// instead of a Unix-millisecond integer.
	TimestampISO bool
	Pretty       bool
	// CorrelationIDKey, if set, is looked up in the record's context and
	// surfaced as the top-level "correlation_id" field.
	CorrelationIDKey string
}

// JSONFormatter renders a Record as a JSON object per spec.md §6.
type JSONFormatter struct {
	cfg JSONConfig
}

// NewJSONFormatter constructs a JSONFormatter.
func NewJSONFormatter(cfg JSONConfig) *JSONFormatter {
	return &JSONFormatter{cfg: cfg}
}

// Format implements Formatter.
func (f *JSONFormatter) Format(r record.Record) ([]byte, error) {
	out := make(map[string]any, 8+r.Context().Len())

	if f.cfg.TimestampISO {
		out["timestamp"] = FormatTime(r.Timestamp, "ISO8601")
	} else {
		out["timestamp"] = r.Timestamp.UnixMilli()
	}
	out["level"] = r.Level.String()
	out["message"] = r.Message

	if r.HasSource() {
		if r.Source.Module != "" {
			out["module"] = r.Source.Module
		}
		if r.Source.Function != "" {
			out["function"] = r.Source.Function
		}
		if r.Source.File != "" {
			out["file"] = r.Source.File
		}
		if r.Source.Line != 0 {
			out["line"] = r.Source.Line
		}
	}
	if r.TraceID.IsValid() {
		out["trace_id"] = r.TraceID.String()
	}
	if r.SpanID.IsValid() {
		out["span_id"] = r.SpanID.String()
	}

	flat := r.Context().Flatten()
	if f.cfg.CorrelationIDKey != "" {
		if v, ok := flat[f.cfg.CorrelationIDKey]; ok {
			out["correlation_id"] = v.Any()
		}
	}
	for k, v := range flat {
		key := k
		if reservedJSONKeys[key] {
			key = "ctx_" + key
		}
		out[key] = v.Any()
	}

	if f.cfg.Pretty {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}
