package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"servicenow-cmdb-integration/internal/classifier"
	"servicenow-cmdb-integration/internal/envrule"
	"servicenow-cmdb-integration/internal/stats"
)

func newAddEnvironmentRuleCmd(opts *globalOptions) *cobra.Command {
	var (
		groups        []string
		groupsFile    string
		updateTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add-environment-rule",
		Short: "Make environment groups match nodes on their CMDB environment",
		Long: `Add ["=", ["trusted", "external", "servicenow", "puppet_environment"], <environment>]
to the rule of each named environment group. Groups that already carry the
condition are left alone, so the command can be re-run safely.

Examples:
  servicenow-cmdb add-environment-rule --groups "Production environment"

  # Work on an exported groups file instead of the classifier API
  servicenow-cmdb add-environment-rule --groups dev,prod --groups-file groups.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			var store envrule.GroupStore
			if groupsFile != "" {
				store = classifier.NewFileStore(groupsFile)
			} else {
				client, err := classifier.NewClient(a.cfg.Classifier, a.cfg.Timeout, a.logger)
				if err != nil {
					return err
				}
				store = client
			}

			runStats := stats.NewRunStats()
			merger := envrule.NewMerger(store, a.logger,
				envrule.WithMetrics(a.metrics),
				envrule.WithStats(runStats),
				envrule.WithPublisher(a.publisher),
				envrule.WithUpdateTimeout(updateTimeout),
			)

			if err := merger.AddEnvironmentRule(cmd.Context(), groups); err != nil {
				return err
			}

			a.logger.Info("environment rule run complete", "stats", runStats.GetStats())
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"status": "success",
				"stats":  runStats.GetStats(),
			})
		},
	}

	cmd.Flags().StringSliceVar(&groups, "groups", nil, "names of the environment groups to update")
	cmd.Flags().StringVar(&groupsFile, "groups-file", "", "read and write groups in this JSON file instead of the classifier API")
	cmd.Flags().DurationVar(&updateTimeout, "update-timeout", 0, "deadline for each group update (0 = none)")
	if err := cmd.MarkFlagRequired("groups"); err != nil {
		panic(fmt.Sprintf("groups flag: %v", err))
	}

	return cmd
}
