package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"servicenow-cmdb-integration/internal/lookup"
)

func newGetvarCmd(opts *globalOptions) *cobra.Command {
	var (
		scopeFile    string
		topscopeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "getvar <var>",
		Short: "Resolve a hiera backend var against node variables",
		Long: `Resolve <var> (a variable name, optionally followed by a dotted path) against the
node variables in --scope-file (YAML or JSON) and print the hash found there.

Example:
  servicenow-cmdb getvar trusted.external.servicenow.hiera_data --scope-file node.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			scope := lookup.Scope{}
			if scopeFile != "" {
				data, err := os.ReadFile(scopeFile)
				if err != nil {
					return fmt.Errorf("failed to read scope file: %w", err)
				}
				if err := yaml.Unmarshal(data, &scope); err != nil {
					return fmt.Errorf("failed to parse scope file: %w", err)
				}
			}

			value, err := lookup.Getvar(scope, args[0], topscopeOnly, a.logger)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), value)
		},
	}

	cmd.Flags().StringVar(&scopeFile, "scope-file", "", "YAML or JSON file of node variables")
	cmd.Flags().BoolVar(&topscopeOnly, "topscope-vars-only", true, "only allow top scope variables")
	return cmd
}
