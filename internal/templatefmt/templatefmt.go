package templatefmt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// FuncMap returns shared broadcast template helpers.
// Params: none.
// Returns: deterministic helper map used by config validation and runtime rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"upper":   Upper,
		"json":    MarshalJSON,
		"fmtTime": FormatTime,
	}
}

// ParseBroadcastTemplate parses one broadcast message template with shared helpers.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseBroadcastTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// Upper renders any value as an upper-case string.
// Params: template value of any type.
// Returns: upper-cased string form.
func Upper(value any) string {
	return strings.ToUpper(fmt.Sprintf("%v", value))
}

// FormatTime renders timestamps in RFC3339 for broadcast messages.
// Params: template value expected as time.Time or *time.Time.
// Returns: formatted time string or empty string for other types.
func FormatTime(value any) string {
	switch typed := value.(type) {
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case *time.Time:
		if typed == nil {
			return ""
		}
		return typed.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// MarshalJSON renders value into JSON string for template embedding.
// Params: template value of any type.
// Returns: marshaled JSON string or "null" on marshal failure.
func MarshalJSON(value any) string {
	body, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(body)
}
