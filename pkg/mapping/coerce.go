package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mapsproj/maps/pkg/profile"
)

// coerce converts a transformed string into the mapping's declared type.
// On failure the caller keeps the raw string and records a
// coercion_failed issue; coercion never aborts a record.
func coerce(value string, t profile.DataType) (any, error) {
	switch t {
	case profile.TypeString, "":
		return value, nil
	case profile.TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", value)
		}
		return n, nil
	case profile.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return f, nil
	case profile.TypeBool:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", value)
	case profile.TypeDate:
		v := strings.TrimSpace(value)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a recognized date", value)
	default:
		// Unknown types are rejected at profile load; reaching here is a
		// programming error.
		return nil, fmt.Errorf("unsupported data type %q", t)
	}
}
