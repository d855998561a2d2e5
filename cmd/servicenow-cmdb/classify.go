package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"servicenow-cmdb-integration/internal/classification"
	"servicenow-cmdb-integration/internal/cmdb"
	"servicenow-cmdb-integration/internal/notify"
	"servicenow-cmdb-integration/internal/rule"
	"servicenow-cmdb-integration/internal/secret"
	"servicenow-cmdb-integration/internal/taskerr"
)

func newClassifyCmd(opts *globalOptions) *cobra.Command {
	var rulesDir string

	cmd := &cobra.Command{
		Use:   "classify <certname>",
		Short: "Print classification data for a node",
		Long: `Look up the node's CMDB record and print it as trusted external data:
{"servicenow": {"puppet_environment": ..., "puppet_classes": ..., "hiera_data": ..., ...}}

With --rules-dir, every *.json group rule under the directory is evaluated
against the result and matches are logged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer a.close()
			return a.classify(cmd.Context(), cmd, args[0], rulesDir)
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules-dir", "", "directory of JSON group rules to evaluate against the result")
	return cmd
}

func (a *app) classify(ctx context.Context, cmd *cobra.Command, certname, rulesDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := a.logger.With("certname", certname)

	decrypter, err := secret.NewDecrypter(a.cfg.HieraEyaml, a.logger)
	if err != nil {
		return err
	}
	password, err := decrypter.Decrypt(a.cfg.Password.Value())
	if err != nil {
		return fmt.Errorf("failed to decrypt password: %w", err)
	}
	token, err := decrypter.Decrypt(a.cfg.OAuthToken.Value())
	if err != nil {
		return fmt.Errorf("failed to decrypt oauth_token: %w", err)
	}

	client, err := cmdb.NewClient(cmdb.ClientConfig{
		Instance:           a.cfg.Instance,
		User:               a.cfg.User,
		Password:           password,
		OAuthToken:         token,
		Timeout:            a.cfg.Timeout,
		InsecureSkipVerify: !a.cfg.VerifySSL,
		Debug:              a.cfg.Debug,
	}, a.logger, a.metrics)
	if err != nil {
		return err
	}

	response, err := classification.Servicenow(ctx, client, classification.Options{
		Table:            a.cfg.Table,
		CertnameField:    a.cfg.CertnameField,
		ClassesField:     a.cfg.ClassesField,
		EnvironmentField: a.cfg.EnvironmentField,
	}, certname)
	if err != nil {
		result := "error"
		if taskerr.IsValidation(err) {
			result = "invalid"
		}
		a.metrics.IncClassifications(result)
		return err
	}

	environment := ""
	if response.Servicenow.Environment != nil {
		environment = *response.Servicenow.Environment
	}
	if response.Servicenow.IsEmpty() {
		log.Info("no cmdb record found")
		a.metrics.IncClassifications("empty")
	} else {
		log.Info("node classified", "environment", environment)
		a.metrics.IncClassifications("classified")
	}

	if rulesDir != "" {
		if err := a.reportMatchingRules(response, rulesDir); err != nil {
			return err
		}
	}

	if err := a.publisher.Publish(ctx, notify.NewEvent(notify.EventNodeClassified, "", certname, environment)); err != nil {
		log.Warn("failed to publish event", "error", err)
	}

	return writeJSON(cmd.OutOrStdout(), response)
}

// reportMatchingRules logs which group rules the node would match once the
// payload is available as trusted external data.
func (a *app) reportMatchingRules(response *classification.Response, rulesDir string) error {
	rules, err := rule.NewRulesLoader(a.logger).LoadFromDirectory(rulesDir)
	if err != nil {
		return err
	}

	data, err := json.Marshal(response.Servicenow)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	node := map[string]interface{}{
		"trusted": map[string]interface{}{
			"external": map[string]interface{}{
				"servicenow": payload,
			},
		},
	}

	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var matched []string
	for _, name := range names {
		if rule.Evaluate(rules[name], node) {
			matched = append(matched, name)
		}
	}
	a.logger.Info("evaluated group rules", "rules", len(rules), "matched", matched)
	return nil
}
