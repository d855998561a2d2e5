package rule

// EnvironmentFact is the trusted external fact populated from the CMDB record.
var EnvironmentFact = []string{"trusted", "external", "servicenow", "puppet_environment"}

// EnvironmentRule matches nodes whose CMDB environment equals environment.
func EnvironmentRule(environment string) *Atom {
	field := make([]string, len(EnvironmentFact))
	copy(field, EnvironmentFact)
	return &Atom{
		Op:    OperatorEquals,
		Field: field,
		Value: environment,
		Path:  true,
	}
}

// HasCondition reports whether cond is already present in r, either as the whole
// rule or as a direct child of an "or" rule.
func HasCondition(r, cond Rule) bool {
	if isNil(r) {
		return false
	}
	if Equal(r, cond) {
		return true
	}

	c, ok := r.(*Combinator)
	if !ok || c.Op != OperatorOr {
		return false
	}
	for _, child := range c.Children {
		if Equal(child, cond) {
			return true
		}
	}
	return false
}

// WithCondition returns a new rule that also matches cond. A nil rule becomes cond,
// an "or" rule gains cond as its last child, anything else is OR-ed with cond.
// r itself is never modified.
func WithCondition(r, cond Rule) Rule {
	if isNil(r) {
		return cond
	}

	if c, ok := r.(*Combinator); ok && c.Op == OperatorOr {
		children := make([]Rule, 0, len(c.Children)+1)
		children = append(children, c.Children...)
		children = append(children, cond)
		return &Combinator{Op: OperatorOr, Children: children}
	}

	return &Combinator{Op: OperatorOr, Children: []Rule{r, cond}}
}
