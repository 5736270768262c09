package vectorstore

import (
	"fmt"
	"strconv"
)

// PayloadString returns meta[key] as a string, or "" when absent.
func PayloadString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// PayloadInt returns meta[key] as an int. Qdrant hands integers back as
// int64, and JSON round trips produce float64, so both are accepted.
func PayloadInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
