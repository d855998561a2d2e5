//file: internal/rule/evaluator.go

package rule

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Evaluate reports whether node data matches r. A nil rule matches nothing,
// as a group without a rule classifies no nodes.
func Evaluate(r Rule, data map[string]interface{}) bool {
	if isNil(r) {
		return false
	}

	switch v := r.(type) {
	case *Atom:
		return evaluateAtom(v, data)
	case *Not:
		return !Evaluate(v.Child, data)
	case *Combinator:
		switch v.Op {
		case OperatorAnd:
			for _, child := range v.Children {
				if !Evaluate(child, data) {
					return false
				}
			}
			return true
		case OperatorOr:
			for _, child := range v.Children {
				if Evaluate(child, data) {
					return true
				}
			}
			return false
		}
	}
	return false
}

// evaluateAtom evaluates a single comparison against node data
func evaluateAtom(atom *Atom, data map[string]interface{}) bool {
	value, exists := Resolve(data, atom.Field)
	if !exists {
		return atom.Op == OperatorNotEquals || atom.Op == OperatorNotMatches
	}

	switch atom.Op {
	case OperatorEquals:
		return compareValues(value, atom.Value) == 0
	case OperatorNotEquals:
		return compareValues(value, atom.Value) != 0
	case OperatorGreaterThan:
		return compareNumbers(value, atom.Value, func(a, b float64) bool { return a > b })
	case OperatorLessThan:
		return compareNumbers(value, atom.Value, func(a, b float64) bool { return a < b })
	case OperatorGreaterThanOrEqual:
		return compareNumbers(value, atom.Value, func(a, b float64) bool { return a >= b })
	case OperatorLessThanOrEqual:
		return compareNumbers(value, atom.Value, func(a, b float64) bool { return a <= b })
	case OperatorMatches:
		return matchesPattern(value, atom.Value)
	case OperatorNotMatches:
		return !matchesPattern(value, atom.Value)
	default:
		return false
	}
}

// Resolve walks path through nested maps.
func Resolve(data map[string]interface{}, path []string) (interface{}, bool) {
	var current interface{} = data

	for _, key := range path {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			current = v[i]
		default:
			return nil, false
		}
	}

	return current, true
}

// compareValues compares two values of potentially different types
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	switch va := a.(type) {
	case float64, json.Number, int, int64:
		fa, _ := toFloat64(va)
		if fb, ok := toFloat64(b); ok {
			if fa < fb {
				return -1
			}
			if fa > fb {
				return 1
			}
			return 0
		}
	case string:
		return strings.Compare(va, toString(b))
	case bool:
		if vb, ok := toBool(b); ok {
			if va == vb {
				return 0
			}
			if va {
				return 1
			}
			return -1
		}
	}

	// If types are incompatible, compare their string representations
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func compareNumbers(a, b interface{}, cmp func(float64, float64) bool) bool {
	fa, ok := toFloat64(a)
	if !ok {
		return false
	}
	fb, ok := toFloat64(b)
	if !ok {
		return false
	}
	return cmp(fa, fb)
}

// matchesPattern checks if a value matches a regular expression pattern
func matchesPattern(value, pattern interface{}) bool {
	re, err := regexp.Compile(toString(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(toString(value))
}

// Type conversion helper functions
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b, true
		}
	}
	return false, false
}
