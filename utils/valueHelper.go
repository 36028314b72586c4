package utils

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// NormalizeCellValue converts a decoded JSON scalar into the text stored in a
// column. ok is false for objects and arrays, which no column can hold.
func NormalizeCellValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		return v, true
	case float64:
		return decimal.NewFromFloat(v).String(), true
	case float32:
		return decimal.NewFromFloat32(v).String(), true
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d.String(), true
		}
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case map[string]any, []any:
		return nil, false
	}
	return nil, false
}

// StringValue returns the text form of a scalar cell, "" for nil or non-scalars.
func StringValue(value any) string {
	v, ok := NormalizeCellValue(value)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
