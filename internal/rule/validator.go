//file: internal/rule/validator.go
package rule

// Reasons a group's rule cannot take an environment condition.
const (
	// ReasonAPIManaged marks a combinator with a nested "and"/"or" child. Such rules
	// can only be built through the API and are left alone.
	ReasonAPIManaged = "api_managed"
	// ReasonAndRule marks a top-level "and" rule; OR-ing a new condition into it
	// would change what it matches.
	ReasonAndRule = "and_rule"
)

// ShapeViolation reports why r cannot be extended with an environment condition,
// or "" when r is nil, an atom, a negation, or an "or" rule over non-boolean children.
func ShapeViolation(r Rule) string {
	c, ok := r.(*Combinator)
	if !ok || c == nil {
		return ""
	}

	for _, child := range c.Children {
		if IsBoolean(child.Operator()) {
			return ReasonAPIManaged
		}
	}

	if c.Op == OperatorAnd {
		return ReasonAndRule
	}
	return ""
}
