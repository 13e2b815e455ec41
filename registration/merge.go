// Package registration merges the role specific form a new owner submits on
// transfer acceptance into the product record and reports which fields were
// actually filled.
package registration

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
)

// Result holds the coerced values of the filled fields
type Result struct {
	// Registered lists filled field names in form order
	Registered []string
	Values     map[string]any
}

// Empty reports whether nothing was filled
func (r *Result) Empty() bool {
	return len(r.Registered) == 0
}

// Merge keeps the recognized non-empty fields of raw for role and coerces
// them. fileRef, when set, is recorded as the payment proof URL whatever the
// role's form says, because it comes from the file upload rather than the form.
func Merge(role types.Role, raw map[string]any, fileRef string) (*Result, error) {
	form := FormFor(role)
	result := &Result{Values: make(map[string]any)}

	for _, field := range form.Fields {
		v, ok := raw[field.Name]
		if !ok || isEmpty(v) {
			continue
		}
		coerced, err := coerce(field, v)
		if err != nil {
			return nil, err
		}
		if list, ok := coerced.([]string); ok && len(list) == 0 {
			continue
		}
		result.Values[field.Name] = coerced
		result.Registered = append(result.Registered, field.Name)
	}

	if fileRef != "" {
		if _, ok := result.Values[FieldPaymentProofURL]; !ok {
			result.Registered = append(result.Registered, FieldPaymentProofURL)
		}
		result.Values[FieldPaymentProofURL] = fileRef
	}

	return result, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func coerce(field Field, v any) (any, error) {
	switch field.Kind {
	case Number:
		return toNumber(field.Name, v)
	case Date:
		return toDate(field.Name, v)
	case StringList:
		return toStringList(field.Name, v)
	default:
		return toText(field.Name, v)
	}
}

func toText(name string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", ledgererr.Validation("field %s must be text", name)
}

func toNumber(name string, v any) (float64, error) {
	f, err := parseNumber(name, v)
	if err != nil {
		return 0, err
	}
	// records are stored as JSON, which has no NaN or infinity
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ledgererr.Validation("field %s must be a finite number, got %v", name, v)
	}
	return f, nil
}

func parseNumber(name string, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err == nil {
			return f, nil
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, ledgererr.Validation("field %s must be numeric, got %v", name, v)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func toDate(name string, v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return time.Time{}, ledgererr.Validation("field %s must be a date (YYYY-MM-DD or RFC 3339), got %v", name, v)
}

// toStringList accepts a JSON encoded array, as multipart forms send it, or a decoded list
func toStringList(name string, v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return trimAll(x), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, ledgererr.Validation("field %s must be a list of strings", name)
			}
			out = append(out, s)
		}
		return trimAll(out), nil
	case string:
		var list []string
		if err := json.Unmarshal([]byte(x), &list); err != nil {
			return nil, ledgererr.Validation("field %s must be a JSON list of strings", name)
		}
		return trimAll(list), nil
	}
	return nil, ledgererr.Validation("field %s must be a list of strings", name)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
