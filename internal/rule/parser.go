package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// Parse decodes a rule from its JSON array form. JSON null yields a nil Rule.
func Parse(data []byte) (Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, &RuleValidationError{
			Field:   "rule",
			Message: fmt.Sprintf("invalid json: %v", err),
		}
	}
	return FromValue(value)
}

// FromValue builds a rule from generic decoded JSON.
func FromValue(value interface{}) (Rule, error) {
	if value == nil {
		return nil, nil
	}
	return fromValue(value, "rule")
}

func fromValue(value interface{}, path string) (Rule, error) {
	arr, ok := value.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, &RuleValidationError{
			Field:   path,
			Message: "rule must be a non-empty array",
		}
	}

	op, ok := arr[0].(string)
	if !ok {
		return nil, &RuleValidationError{
			Field:   path + "[0]",
			Message: "operator must be a string",
		}
	}

	switch {
	case IsBoolean(op):
		if len(arr) < 2 {
			return nil, &RuleValidationError{
				Field:   path,
				Message: fmt.Sprintf("%q rule needs at least one child", op),
			}
		}
		children := make([]Rule, 0, len(arr)-1)
		for i, raw := range arr[1:] {
			child, err := fromValue(raw, fmt.Sprintf("%s[%d]", path, i+1))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &Combinator{Op: op, Children: children}, nil

	case op == OperatorNot:
		if len(arr) != 2 {
			return nil, &RuleValidationError{
				Field:   path,
				Message: "\"not\" rule takes exactly one child",
			}
		}
		child, err := fromValue(arr[1], path+"[1]")
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil

	case ValidOperators[op]:
		return parseAtom(op, arr, path)

	default:
		return nil, &RuleValidationError{
			Field:   path + "[0]",
			Message: fmt.Sprintf("invalid operator: %s", op),
		}
	}
}

func parseAtom(op string, arr []interface{}, path string) (Rule, error) {
	if len(arr) != 3 {
		return nil, &RuleValidationError{
			Field:   path,
			Message: fmt.Sprintf("%q comparison takes a field and a value", op),
		}
	}

	field, isPath, err := parseField(arr[1])
	if err != nil {
		return nil, &RuleValidationError{
			Field:   path + "[1]",
			Message: err.Error(),
		}
	}

	value := arr[2]
	switch value.(type) {
	case string, json.Number, float64, bool:
	default:
		return nil, &RuleValidationError{
			Field:   path + "[2]",
			Message: fmt.Sprintf("value must be a scalar, got %T", value),
		}
	}

	// Validate pattern for regex operators
	if op == OperatorMatches || op == OperatorNotMatches {
		pattern, ok := value.(string)
		if !ok {
			return nil, &RuleValidationError{
				Field:   path + "[2]",
				Message: "regex pattern must be a string",
			}
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, &RuleValidationError{
				Field:   path + "[2]",
				Message: fmt.Sprintf("invalid regex pattern: %s", err),
			}
		}
	}

	return &Atom{Op: op, Field: field, Value: value, Path: isPath}, nil
}

func parseField(raw interface{}) ([]string, bool, error) {
	switch f := raw.(type) {
	case string:
		if f == "" {
			return nil, false, fmt.Errorf("field cannot be empty")
		}
		return []string{f}, false, nil
	case []interface{}:
		if len(f) == 0 {
			return nil, true, fmt.Errorf("field path cannot be empty")
		}
		field := make([]string, len(f))
		for i, segment := range f {
			s, ok := segment.(string)
			if !ok {
				return nil, true, fmt.Errorf("field path segment %d must be a string", i)
			}
			field[i] = s
		}
		return field, true, nil
	default:
		return nil, false, fmt.Errorf("field must be a string or a path array")
	}
}
