package rule

import (
	"bytes"
	"encoding/json"
)

// Opaque is a rule node kept exactly as it was read. ParseLenient produces one for
// every node that is not an "and", "or" or "not", so comparisons this package
// cannot evaluate (Java-only regexes, null or structured values, unknown
// operators) are written back untouched.
type Opaque struct {
	Op  string
	Raw json.RawMessage
}

func (o *Opaque) Operator() string { return o.Op }

func (*Opaque) isRule() {}

func (o *Opaque) MarshalJSON() ([]byte, error) {
	return append([]byte(nil), o.Raw...), nil
}

func (o *Opaque) String() string { return render(o) }

// ParseLenient decodes a rule the way the node classifier stores it. Only the
// boolean structure is taken apart; leaves are never validated. It fails only on
// malformed JSON. JSON null yields a nil Rule.
func ParseLenient(data []byte) (Rule, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, &RuleValidationError{
			Field:   "rule",
			Message: "invalid json",
		}
	}
	return lenient(data), nil
}

func lenient(raw json.RawMessage) Rule {
	var (
		arr []json.RawMessage
		op  string
	)
	if json.Unmarshal(raw, &arr) != nil || len(arr) == 0 || json.Unmarshal(arr[0], &op) != nil {
		return &Opaque{Raw: append(json.RawMessage(nil), raw...)}
	}

	switch {
	case IsBoolean(op):
		children := make([]Rule, 0, len(arr)-1)
		for _, child := range arr[1:] {
			children = append(children, lenient(child))
		}
		return &Combinator{Op: op, Children: children}
	case op == OperatorNot && len(arr) == 2:
		return &Not{Child: lenient(arr[1])}
	}
	return &Opaque{Op: op, Raw: append(json.RawMessage(nil), raw...)}
}

// atom reads o as a comparison without checking the operator or the value.
func (o *Opaque) atom() (*Atom, bool) {
	dec := json.NewDecoder(bytes.NewReader(o.Raw))
	dec.UseNumber()

	var arr []interface{}
	if err := dec.Decode(&arr); err != nil || len(arr) != 3 {
		return nil, false
	}
	op, ok := arr[0].(string)
	if !ok {
		return nil, false
	}
	field, isPath, err := parseField(arr[1])
	if err != nil {
		return nil, false
	}
	return &Atom{Op: op, Field: field, Value: arr[2], Path: isPath}, true
}

func asAtom(r Rule) (*Atom, bool) {
	switch v := r.(type) {
	case *Atom:
		return v, true
	case *Opaque:
		return v.atom()
	}
	return nil, false
}

// equalLeaf compares when at least one side is Opaque: as comparisons when both
// read as one, otherwise by their compact JSON.
func equalLeaf(a, b Rule) bool {
	la, okA := asAtom(a)
	lb, okB := asAtom(b)
	if okA && okB {
		return Equal(la, lb)
	}
	return render(a) == render(b)
}
