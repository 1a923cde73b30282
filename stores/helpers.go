package stores

import (
	"time"

	"github.com/oarkflow/date"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scanTime normalizes the driver's representation of a timestamp column.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// scanTimePtr is scanTime for nullable columns.
func scanTimePtr(raw interface{}) *time.Time {
	if raw == nil {
		return nil
	}
	t := scanTime(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanRatingPtr normalizes a nullable integer column.
func scanRatingPtr(raw interface{}) *int {
	switch v := raw.(type) {
	case nil:
		return nil
	case int64:
		n := int(v)
		return &n
	case int:
		return &v
	}
	return nil
}
