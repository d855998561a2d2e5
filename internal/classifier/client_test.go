package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
	"servicenow-cmdb-integration/internal/rule"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(config.ClassifierConfig{URL: server.URL + "/classifier-api/"}, 5*time.Second, logger.NewNop())
	require.NoError(t, err)
	c.httpClient = server.Client()
	return c
}

func TestListGroups(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/classifier-api/v1/groups", r.URL.Path)
		w.Write([]byte(`[` + groupJSON + `, {"id": "two_id", "name": "two_name", "rule": null}]`))
	})

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "one_name", groups[0].Name)
	assert.Nil(t, groups[1].Rule)
}

func TestListGroupsKeepsRulesItCannotEvaluate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
		  {"id": "prod_id", "name": "Production environment", "environment": "production", "rule": null},
		  {"id": "db_id", "name": "Unrelated", "environment": "production", "rule": ["~", "name", "^(?!db).*"]},
		  {"id": "x_id", "name": "Null value", "environment": "production", "rule": ["and", ["=", ["fact", "x"], null]]}
		]`))
	})

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Nil(t, groups[0].Rule)
	assert.Equal(t, `["~","name","^(?!db).*"]`, groups[1].Rule.(*rule.Opaque).String())
	assert.Equal(t, rule.ReasonAndRule, rule.ShapeViolation(groups[2].Rule))
}

func TestListGroupsErrors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"kind": "puppetlabs.rbac/user-unauthenticated"}`))
		})
		_, err := c.ListGroups(context.Background())
		require.Error(t, err)
		statusErr, ok := err.(*StatusError)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
		assert.Contains(t, err.Error(), "user-unauthenticated")
	})

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not": "a list"}`))
		})
		_, err := c.ListGroups(context.Background())
		assert.Error(t, err)
	})
}

func TestUpdateGroup(t *testing.T) {
	var received map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/classifier-api/v1/groups/one_id", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	})

	var g Group
	require.NoError(t, json.Unmarshal([]byte(groupJSON), &g))
	require.NoError(t, c.UpdateGroup(context.Background(), g.WithRule(rule.EnvironmentRule("one_environment"))))

	assert.Equal(t, []interface{}{"=", []interface{}{"trusted", "external", "servicenow", "puppet_environment"}, "one_environment"}, received["rule"])
	assert.Contains(t, received, "classes")
}

func TestUpdateGroupErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("schema violation"))
	})

	err := c.UpdateGroup(context.Background(), &Group{ID: "x", Name: "x"})
	assert.ErrorContains(t, err, "schema violation")

	err = c.UpdateGroup(context.Background(), &Group{Name: "no-id"})
	assert.ErrorContains(t, err, "no id")
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(config.ClassifierConfig{}, time.Second, nil)
	assert.Error(t, err)

	_, err = NewClient(config.ClassifierConfig{URL: "https://puppet:4433", CertFile: "/nonexistent.pem", KeyFile: "/nonexistent.key"}, time.Second, nil)
	assert.Error(t, err)

	_, err = NewClient(config.ClassifierConfig{URL: "https://puppet:4433", CAFile: "/nonexistent-ca.pem"}, time.Second, nil)
	assert.Error(t, err)
}
