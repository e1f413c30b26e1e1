package alerts

import (
	"strconv"
	"strings"
)

// Entry-level fields. Every other field name is looked up as a measurement
// of each float.
const (
	fieldConsecutiveFailures = "consecutive_failures"
	fieldSuccessPct          = "success_pct"
)

// condition is a parsed "<field> <op> <number>" expression.
type condition struct {
	field     string
	op        string
	threshold float64
}

// parseCondition parses cond. ok is false when the expression is malformed.
func parseCondition(cond string) (c condition, ok bool) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, false
	}
	threshold, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, false
	}
	switch parts[1] {
	case ">", ">=", "<", "<=", "==":
	default:
		return condition{}, false
	}
	return condition{field: parts[0], op: parts[1], threshold: threshold}, true
}

func (c condition) entryLevel() bool {
	return c.field == fieldConsecutiveFailures || c.field == fieldSuccessPct
}

// holds applies the operator to v.
func (c condition) holds(v float64) bool {
	switch c.op {
	case ">":
		return v > c.threshold
	case ">=":
		return v >= c.threshold
	case "<":
		return v < c.threshold
	case "<=":
		return v <= c.threshold
	case "==":
		return v == c.threshold
	default:
		return false
	}
}
