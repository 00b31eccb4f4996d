package condition

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

func (l *leaf) Eval(record map[string]any) bool {
	val, ok := lookup(record, l.field)
	if l.op == OpExpression {
		return l.evalExpression(record, val)
	}
	if !ok {
		return false
	}
	// null matches no comparison, as in SQL
	if val == nil && !nullTests[l.op] {
		return false
	}

	switch l.op {
	case OpEqual:
		return compare(val, l.value) == 0
	case OpUnequal:
		return compare(val, l.value) != 0
	case OpLower:
		return compare(val, l.value) < 0
	case OpLowerEqual:
		return compare(val, l.value) <= 0
	case OpGreater:
		return compare(val, l.value) > 0
	case OpGreaterEqual:
		return compare(val, l.value) >= 0
	case OpLike:
		return l.re.MatchString(stringify(val))
	case OpUnlike:
		return !l.re.MatchString(stringify(val))
	case OpIn:
		return inList(val, l.value.([]any))
	case OpNotIn:
		return !inList(val, l.value.([]any))
	case OpIsNull:
		return val == nil
	case OpIsNotNull:
		return val != nil
	case OpIsEmpty:
		return stringify(val) == ""
	case OpIsNotEmpty:
		return stringify(val) != ""
	case OpRegexp:
		return l.re.MatchString(stringify(val))
	case OpNotRegexp:
		return !l.re.MatchString(stringify(val))
	}
	return false
}

var nullTests = map[string]bool{
	OpIsNull:     true,
	OpIsNotNull:  true,
	OpIsEmpty:    true,
	OpIsNotEmpty: true,
}

func (l *leaf) evalExpression(record map[string]any, val any) bool {
	env := map[string]any{
		"record": record,
		"value":  val,
	}
	result, err := expr.Run(l.prog, env)
	if err != nil {
		log.Printf("WARN: condition expression on %q: %v", l.field, err)
		return false
	}
	b, ok := result.(bool)
	return ok && b
}

// lookup finds a field in a record. A table-qualified name falls back to
// its column part.
func lookup(record map[string]any, field string) (any, bool) {
	if field == "" {
		return nil, false
	}
	if v, ok := record[field]; ok {
		return v, true
	}
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		v, ok := record[field[i+1:]]
		return v, ok
	}
	return nil, false
}

func inList(val any, list []any) bool {
	for _, item := range list {
		if compare(val, item) == 0 {
			return true
		}
	}
	return false
}

// compare orders two values numerically when both parse as numbers and as
// strings otherwise.
func compare(a, b any) int {
	sa, sb := stringify(a), stringify(b)
	fa, errA := strconv.ParseFloat(strings.TrimSpace(sa), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(sb), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(sa, sb)
}

// stringify renders a record or operand value the way it is stored: nil is
// empty and booleans are "1" or "0".
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Stringify exposes the value rendering used by comparisons.
func Stringify(v any) string {
	return stringify(v)
}
