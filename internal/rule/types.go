//file: internal/rule/types.go
package rule

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Rule is a node classifier rule tree: an Atom, a Not, a Combinator or an Opaque leaf.
// A nil Rule means the group has no rule.
type Rule interface {
	json.Marshaler
	// Operator returns the tag in position 0 of the rule's array form
	Operator() string
	String() string
	isRule()
}

// Atom is a single comparison such as ["=", ["fact", "os", "family"], "RedHat"].
// A one-element Field is written as a plain string ("name", "certname") unless
// Path is set, in which case the array form is kept.
type Atom struct {
	Op    string
	Field []string
	Value interface{}
	Path  bool
}

// Not negates its child: ["not", <rule>].
type Not struct {
	Child Rule
}

// Combinator joins one or more children: ["and"|"or", <rule>, ...].
type Combinator struct {
	Op       string
	Children []Rule
}

// RuleValidationError represents a malformed rule tree
type RuleValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *RuleValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Constants for rule operators
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
	OperatorNot = "not"

	// Comparison operators
	OperatorEquals             = "="
	OperatorNotEquals          = "!="
	OperatorMatches            = "~"
	OperatorNotMatches         = "!~"
	OperatorGreaterThan        = ">"
	OperatorLessThan           = "<"
	OperatorGreaterThanOrEqual = ">="
	OperatorLessThanOrEqual    = "<="
)

// ValidOperators contains all valid comparison operators
var ValidOperators = map[string]bool{
	OperatorEquals:             true,
	OperatorNotEquals:          true,
	OperatorMatches:            true,
	OperatorNotMatches:         true,
	OperatorGreaterThan:        true,
	OperatorLessThan:           true,
	OperatorGreaterThanOrEqual: true,
	OperatorLessThanOrEqual:    true,
}

// IsBoolean reports whether op is one of the combinator tags.
func IsBoolean(op string) bool {
	return op == OperatorAnd || op == OperatorOr
}

func (a *Atom) Operator() string       { return a.Op }
func (n *Not) Operator() string        { return OperatorNot }
func (c *Combinator) Operator() string { return c.Op }

func (*Atom) isRule()       {}
func (*Not) isRule()        {}
func (*Combinator) isRule() {}

func (a *Atom) MarshalJSON() ([]byte, error)       { return json.Marshal(ToValue(a)) }
func (n *Not) MarshalJSON() ([]byte, error)        { return json.Marshal(ToValue(n)) }
func (c *Combinator) MarshalJSON() ([]byte, error) { return json.Marshal(ToValue(c)) }

func (a *Atom) String() string       { return render(a) }
func (n *Not) String() string        { return render(n) }
func (c *Combinator) String() string { return render(c) }

// ToValue converts a rule back to its generic array form.
func ToValue(r Rule) interface{} {
	switch v := r.(type) {
	case nil:
		return nil
	case *Atom:
		var field interface{}
		if len(v.Field) == 1 && !v.Path {
			field = v.Field[0]
		} else {
			path := make([]interface{}, len(v.Field))
			for i, segment := range v.Field {
				path[i] = segment
			}
			field = path
		}
		return []interface{}{v.Op, field, v.Value}
	case *Not:
		return []interface{}{OperatorNot, ToValue(v.Child)}
	case *Combinator:
		out := make([]interface{}, 0, len(v.Children)+1)
		out = append(out, v.Op)
		for _, child := range v.Children {
			out = append(out, ToValue(child))
		}
		return out
	case *Opaque:
		return json.RawMessage(v.Raw)
	default:
		return nil
	}
}

// Equal compares two rule trees structurally.
func Equal(a, b Rule) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if _, ok := a.(*Opaque); ok {
		return equalLeaf(a, b)
	}
	if _, ok := b.(*Opaque); ok {
		return equalLeaf(a, b)
	}

	switch va := a.(type) {
	case *Atom:
		vb, ok := b.(*Atom)
		return ok && va.Op == vb.Op &&
			reflect.DeepEqual(va.Field, vb.Field) &&
			va.usesPath() == vb.usesPath() &&
			valuesEqual(va.Value, vb.Value)
	case *Not:
		vb, ok := b.(*Not)
		return ok && Equal(va.Child, vb.Child)
	case *Combinator:
		vb, ok := b.(*Combinator)
		if !ok || va.Op != vb.Op || len(va.Children) != len(vb.Children) {
			return false
		}
		for i := range va.Children {
			if !Equal(va.Children[i], vb.Children[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (a *Atom) usesPath() bool {
	return a.Path || len(a.Field) != 1
}

// isNil treats typed nil pointers the same as a nil interface.
func isNil(r Rule) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// valuesEqual compares atom values, treating json.Number and float64 forms of the same number as equal.
func valuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toFloat64(a)
	fb, okB := toFloat64(b)
	_, aIsString := a.(string)
	_, bIsString := b.(string)
	return okA && okB && !aIsString && !bIsString && fa == fb
}

func render(r Rule) string {
	data, err := json.Marshal(ToValue(r))
	if err != nil {
		return fmt.Sprintf("%v", ToValue(r))
	}
	return string(data)
}
