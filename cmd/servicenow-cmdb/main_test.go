package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicenow-cmdb-integration/internal/taskerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newCMDBServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/now/table/cmdb_ci", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("sysparm_display_value"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "password", pass)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func classifyConfig(t *testing.T, dir, instance string) string {
	return writeFile(t, dir, "servicenow_cmdb.yaml", `
instance: `+instance+`
user: admin
password: password
logging:
  output_path: `+filepath.Join(dir, "servicenow.log")+`
hiera_eyaml:
  config_file: `+filepath.Join(dir, "no-eyaml.yaml")+`
`)
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	server := newCMDBServer(t, `{"result": [{
		"fqdn": "web01.example.com",
		"u_puppet_environment": "production",
		"u_puppet_classes": "{\"ntp\": {\"servers\": [\"a\"]}}"
	}]}`)
	configPath := classifyConfig(t, dir, server.URL)
	textfile := filepath.Join(dir, "servicenow.prom")

	rulesDir := filepath.Join(dir, "rules")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))
	writeFile(t, rulesDir, "production.json", `["=", ["trusted", "external", "servicenow", "puppet_environment"], "production"]`)

	out, err := runCmd(t, "classify", "web01.example.com",
		"--config", configPath,
		"--metrics-textfile", textfile,
		"--rules-dir", rulesDir)
	require.NoError(t, err)

	assert.JSONEq(t, `{"servicenow": {
		"fqdn": "web01.example.com",
		"puppet_environment": "production",
		"puppet_classes": {"ntp": {"servers": ["a"]}},
		"hiera_data": {"ntp::servers": ["a"], "servicenow_cmdb_integration_data_backend_present": true}
	}}`, out)

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `servicenow_classifications_total{result="classified"} 1`)

	logs, err := os.ReadFile(filepath.Join(dir, "servicenow.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "production")
}

func TestClassifyCommandNoRecord(t *testing.T) {
	dir := t.TempDir()
	server := newCMDBServer(t, `{"result": []}`)

	out, err := runCmd(t, "classify", "unknown.example.com", "--config", classifyConfig(t, dir, server.URL))
	require.NoError(t, err)
	assert.JSONEq(t, `{"servicenow": {}}`, out)
}

func TestClassifyCommandValidationError(t *testing.T) {
	dir := t.TempDir()
	server := newCMDBServer(t, `{"result": [{"u_puppet_environment": 5}]}`)

	_, err := runCmd(t, "classify", "web01.example.com", "--config", classifyConfig(t, dir, server.URL))
	require.Error(t, err)
	assert.True(t, taskerr.IsValidation(err))
	assert.Contains(t, err.Error(), "u_puppet_environment must be a String")
}

func TestAddEnvironmentRuleCommand(t *testing.T) {
	dir := t.TempDir()
	groupsFile := writeFile(t, dir, "groups.json", `[
		{"id": "one_id", "name": "one_name", "environment": "one_environment", "environment_trumps": true, "rule": null},
		{"id": "two_id", "name": "two_name", "environment": "two_environment", "environment_trumps": true,
		 "rule": ["=", ["fact", "foo"], "bar"]}
	]`)
	args := []string{"add-environment-rule",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--groups", "one_name,two_name",
		"--groups-file", groupsFile,
		"--log-level", "error",
	}

	out, err := runCmd(t, args...)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 2.0, result["stats"].(map[string]interface{})["updated"])

	data, err := os.ReadFile(groupsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "one_environment")
	assert.Equal(t, 2, strings.Count(string(data), "puppet_environment"))

	// second run changes nothing
	out, err = runCmd(t, args...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2.0, result["stats"].(map[string]interface{})["skipped"])
}

func TestAddEnvironmentRuleCommandMissingGroup(t *testing.T) {
	dir := t.TempDir()
	groupsFile := writeFile(t, dir, "groups.json", `[]`)

	_, err := runCmd(t, "add-environment-rule",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--groups", "nope",
		"--groups-file", groupsFile)
	require.Error(t, err)

	var out bytes.Buffer
	writeError(&out, err)
	assert.JSONEq(t, `{"_error": {
		"kind": "servicenow_integration.validation",
		"msg": "Passed-in nonexistent groups nope",
		"details": {"nonexistent_groups": ["nope"]}
	}}`, out.String())
}

func TestGetvarCommand(t *testing.T) {
	dir := t.TempDir()
	scopeFile := writeFile(t, dir, "node.yaml", `
trusted:
  external:
    servicenow:
      hiera_data:
        ntp::servers: [a, b]
`)

	out, err := runCmd(t, "getvar", "trusted.external.servicenow.hiera_data",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--scope-file", scopeFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ntp::servers": ["a", "b"]}`, out)

	_, err = runCmd(t, "getvar", "my_class::var",
		"--config", filepath.Join(dir, "missing.yaml"))
	assert.True(t, taskerr.IsValidation(err))
}

func TestWriteError(t *testing.T) {
	var out bytes.Buffer
	writeError(&out, errors.New("failed to load config: boom"))
	assert.JSONEq(t, `{"_error": {"kind": "servicenow_integration.error", "msg": "failed to load config: boom", "details": {}}}`, out.String())
}

func TestUnknownLogLevelRejected(t *testing.T) {
	dir := t.TempDir()
	groupsFile := writeFile(t, dir, "groups.json", `[]`)

	_, err := runCmd(t, "add-environment-rule",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--groups", "one_name",
		"--groups-file", groupsFile,
		"--log-level", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: bogus")
}
