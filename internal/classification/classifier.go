// Package classification turns raw CMDB records into classification payloads.
package classification

import (
	"bytes"
	"encoding/json"
	"fmt"

	"servicenow-cmdb-integration/internal/cmdb"
	"servicenow-cmdb-integration/internal/taskerr"
)

// Classify validates record and reshapes it into a payload. The environment and classes
// fields are renamed, never duplicated; the input record is not modified. Any validation
// failure aborts the whole classification.
func Classify(record cmdb.Record, classesField, environmentField string) (*Payload, error) {
	payload := &Payload{Fields: make(map[string]interface{}, len(record))}
	for k, v := range record {
		payload.Fields[k] = v
	}

	if raw, ok := payload.Fields[environmentField]; ok {
		environment, isString := raw.(string)
		if !isString {
			return nil, taskerr.Validation(fmt.Sprintf("%s must be a String", environmentField), nil)
		}
		delete(payload.Fields, environmentField)
		payload.Environment = &environment
	}

	if raw, ok := payload.Fields[classesField]; ok {
		delete(payload.Fields, classesField)

		classes, err := parseClasses(raw)
		if err != nil {
			return nil, taskerr.Validation(
				fmt.Sprintf("%s must be a json serialization of type Map[String, Map[String, Any]]", classesField),
				nil)
		}
		payload.Classes = classes
		payload.HieraData = HieraData(classes)
	}

	return payload, nil
}

// HieraData flattens classes into "<class>::<param>" keys plus the backend sentinel.
func HieraData(classes Classes) map[string]interface{} {
	size := 1
	for _, params := range classes {
		size += len(params)
	}

	data := make(map[string]interface{}, size)
	for class, params := range classes {
		for param, value := range params {
			data[class+"::"+param] = value
		}
	}
	data[BackendPresentKey] = true
	return data
}

// parseClasses accepts a JSON object whose values are either objects or, for
// Name-Value pairs fields, JSON-encoded objects.
func parseClasses(raw interface{}) (Classes, error) {
	serialized, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("classes value is a %T", raw)
	}

	parsed, err := decodeObject(serialized)
	if err != nil {
		return nil, err
	}

	classes := make(Classes, len(parsed))
	for class, params := range parsed {
		switch p := params.(type) {
		case map[string]interface{}:
			classes[class] = p
		case string:
			decoded, err := decodeObject(p)
			if err != nil {
				return nil, fmt.Errorf("params of %s: %w", class, err)
			}
			classes[class] = decoded
		default:
			return nil, fmt.Errorf("params of %s is a %T", class, params)
		}
	}
	return classes, nil
}

// decodeObject parses s as a JSON object, treating the empty string as {}.
// Numbers keep their original text.
func decodeObject(s string) (map[string]interface{}, error) {
	if s == "" {
		s = "{}"
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after json value")
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("json value is a %T, not an object", value)
	}
	return obj, nil
}
