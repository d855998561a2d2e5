// Package lookup resolves hiera backend options against a node's variables.
package lookup

import (
	"fmt"
	"regexp"
	"strings"

	"servicenow-cmdb-integration/internal/logger"
	"servicenow-cmdb-integration/internal/rule"
	"servicenow-cmdb-integration/internal/taskerr"
)

var varPattern = regexp.MustCompile(`^((::)?(\w+::)*\w+)(.*)$`)

// Scope holds a node's variables by name; top scope names carry no "::".
type Scope map[string]interface{}

// Getvar resolves var, a variable name optionally followed by a dotted path into
// its value, and returns the hash found there. An undefined variable, a missing
// path or a non-hash value all yield an empty hash. With topscopeOnly set, class
// scoped names such as "my_class::var" are rejected.
func Getvar(scope Scope, v string, topscopeOnly bool, log *logger.Logger) (map[string]interface{}, error) {
	if log == nil {
		log = logger.NewNop()
	}

	m := varPattern.FindStringSubmatch(v)
	if m == nil {
		return nil, taskerr.Validation(fmt.Sprintf("the var '%s' does not start with a valid variable name", v), nil)
	}

	name, rest := m[1], m[4]
	if rest != "" {
		if rest[0] != '.' {
			return nil, taskerr.Validation(
				fmt.Sprintf("first character after var name in var must be a '.' - got %c", rest[0]), nil)
		}
		rest = rest[1:]
	}

	if topscopeOnly && strings.Contains(name, "::") {
		return nil, taskerr.Validation(fmt.Sprintf(
			"attempting to consult non-topscope variable %q. This is prohibited by the topscope_vars_only=true option, "+
				"which dictates that variables consulted must be in topscope. If you would like to consult %q anyway, "+
				"you must set topscope_vars_only=false", name, name), nil)
	}

	value, ok := scope[strings.TrimPrefix(name, "::")]
	if !ok {
		return map[string]interface{}{}, nil
	}

	if rest != "" {
		root, isMap := value.(map[string]interface{})
		if !isMap {
			return map[string]interface{}{}, nil
		}
		value, ok = rule.Resolve(root, strings.Split(rest, "."))
		if !ok {
			return map[string]interface{}{}, nil
		}
	}

	hash, ok := value.(map[string]interface{})
	if !ok {
		log.Debug("var resolves to a non-Hash value so returning an empty Hash instead", "var", v)
		return map[string]interface{}{}, nil
	}
	return hash, nil
}
