package rule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseLenient(t *testing.T, s string) Rule {
	t.Helper()
	r, err := ParseLenient([]byte(s))
	require.NoError(t, err)
	return r
}

func TestParseLenient(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(*testing.T, Rule)
	}{
		{
			name:  "null",
			input: `null`,
			check: func(t *testing.T, r Rule) {
				assert.Nil(t, r)
			},
		},
		{
			name:  "lookahead regex",
			input: `["~", "name", "^(?!db).*"]`,
			check: func(t *testing.T, r Rule) {
				require.IsType(t, &Opaque{}, r)
				assert.Equal(t, OperatorMatches, r.Operator())
			},
		},
		{
			name:  "structure decoded around raw leaves",
			input: `["or", ["and", ["=", ["fact", "x"], null]], ["not", ["bogus"]], 42]`,
			check: func(t *testing.T, r Rule) {
				c, ok := r.(*Combinator)
				require.True(t, ok)
				require.Len(t, c.Children, 3)
				assert.IsType(t, &Combinator{}, c.Children[0])
				assert.IsType(t, &Not{}, c.Children[1])
				assert.IsType(t, &Opaque{}, c.Children[2])
				assert.Equal(t, ReasonAPIManaged, ShapeViolation(r))
			},
		},
		{
			name:  "not with extra operands",
			input: `["not", ["=", "name", "a"], ["=", "name", "b"]]`,
			check: func(t *testing.T, r Rule) {
				assert.IsType(t, &Opaque{}, r)
			},
		},
		{
			name:  "non array",
			input: `"name"`,
			check: func(t *testing.T, r Rule) {
				assert.IsType(t, &Opaque{}, r)
				assert.Equal(t, "", ShapeViolation(r))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustParseLenient(t, tt.input))
		})
	}
}

func TestParseLenientInvalidJSON(t *testing.T) {
	_, err := ParseLenient([]byte(`["or", `))
	assert.Error(t, err)
}

func TestParseLenientKeepsLeafBytes(t *testing.T) {
	input := `["or",["~","name","^(?!db).*"],[">=",["fact","load"],1.50],["=",["fact","os"],{"family":"RedHat"}]]`
	data, err := json.Marshal(ToValue(mustParseLenient(t, input)))
	require.NoError(t, err)
	assert.Equal(t, input, string(data))
}

func TestEqualOpaque(t *testing.T) {
	env := EnvironmentRule("prod")
	raw := mustParseLenient(t, `["=", ["trusted", "external", "servicenow", "puppet_environment"], "prod"]`)

	assert.True(t, Equal(raw, env))
	assert.True(t, Equal(env, raw))
	assert.False(t, Equal(raw, EnvironmentRule("dev")))
	assert.True(t, HasCondition(mustParseLenient(t, `["or", ["~", "name", "^(?!db)"], `+raw.(*Opaque).String()+`]`), env))

	assert.True(t, Equal(mustParseLenient(t, `["bogus", 1]`), mustParseLenient(t, `["bogus",  1]`)))
	assert.False(t, Equal(mustParseLenient(t, `["bogus", 1]`), mustParseLenient(t, `["bogus", 2]`)))
	assert.False(t, Equal(mustParseLenient(t, `["=", "name", "a"]`), mustParse(t, `["=", ["name"], "a"]`)))
}
