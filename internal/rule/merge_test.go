package rule

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func diffRules(t *testing.T, want, got Rule) {
	t.Helper()
	if !Equal(want, got) {
		t.Errorf("rule mismatch (-want +got):\n%s", cmp.Diff(ToValue(want), ToValue(got)))
	}
}

func TestEnvironmentRule(t *testing.T) {
	r := EnvironmentRule("production")
	diffRules(t, mustParse(t, `["=", ["trusted", "external", "servicenow", "puppet_environment"], "production"]`), r)

	// callers cannot mutate the shared fact path through the returned rule
	r.Field[0] = "facts"
	assert.Equal(t, "trusted", EnvironmentFact[0])
}

func TestHasCondition(t *testing.T) {
	env := EnvironmentRule("prod")

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"nil rule", nil, false},
		{"rule is the condition", EnvironmentRule("prod"), true},
		{"other environment", EnvironmentRule("dev"), false},
		{"unrelated atom", mustParse(t, `["=", "name", "a"]`), false},
		{"or containing condition", &Combinator{Op: OperatorOr, Children: []Rule{
			mustParse(t, `["=", "name", "a"]`), EnvironmentRule("prod"), mustParse(t, `["=", "name", "b"]`),
		}}, true},
		{"or without condition", mustParse(t, `["or", ["=", "name", "a"]]`), false},
		{"and containing condition", &Combinator{Op: OperatorAnd, Children: []Rule{EnvironmentRule("prod")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasCondition(tt.rule, env))
		})
	}
}

func TestWithCondition(t *testing.T) {
	atom := `["=", ["fact", "foo"], "bar"]`
	env := EnvironmentRule("two_environment")

	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{
			"nil rule becomes the condition",
			nil,
			`["=", ["trusted", "external", "servicenow", "puppet_environment"], "two_environment"]`,
		},
		{
			"atom is or-ed",
			mustParse(t, atom),
			`["or", ` + atom + `, ["=", ["trusted", "external", "servicenow", "puppet_environment"], "two_environment"]]`,
		},
		{
			"or rule gains a child",
			mustParse(t, `["or", `+atom+`]`),
			`["or", ` + atom + `, ["=", ["trusted", "external", "servicenow", "puppet_environment"], "two_environment"]]`,
		},
		{
			"not rule is or-ed",
			mustParse(t, `["not", `+atom+`]`),
			`["or", ["not", ` + atom + `], ["=", ["trusted", "external", "servicenow", "puppet_environment"], "two_environment"]]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffRules(t, mustParse(t, tt.want), WithCondition(tt.rule, env))
		})
	}
}

func TestWithConditionLeavesInputUntouched(t *testing.T) {
	original := mustParse(t, `["or", ["=", "name", "a"], ["=", "name", "b"]]`)
	before := original.String()

	updated := WithCondition(original, EnvironmentRule("prod"))

	assert.Equal(t, before, original.String())
	assert.Len(t, updated.(*Combinator).Children, 3)
	assert.True(t, HasCondition(updated, EnvironmentRule("prod")))
}
