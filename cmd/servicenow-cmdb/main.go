// Package main implements the servicenow-cmdb CLI: the trusted external command
// that classifies nodes from ServiceNow CMDB records, and the tasks that prepare
// node classifier environment groups for it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/taskerr"
)

var version = "dev"

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath      string
	logLevel        string
	debug           bool
	classifierURL   string
	metricsTextfile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		writeError(root.OutOrStdout(), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "servicenow-cmdb",
		Short: "Classify Puppet nodes from ServiceNow CMDB records",
		Long: `servicenow-cmdb reads node records from the ServiceNow CMDB and turns them into
Puppet classification data (environment, classes and hiera data).

Examples:
  # Trusted external command: print classification data for a node
  servicenow-cmdb classify web01.example.com

  # Make environment groups match on the CMDB environment
  servicenow-cmdb add-environment-rule --groups "Production environment,Development environment"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log request details at debug level")
	root.PersistentFlags().StringVar(&opts.classifierURL, "classifier-url", "", "override node classifier API url")
	root.PersistentFlags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file on exit")

	root.AddCommand(newClassifyCmd(opts))
	root.AddCommand(newAddEnvironmentRuleCmd(opts))
	root.AddCommand(newGetvarCmd(opts))

	return root
}

// writeError prints err as a task error document under "_error".
func writeError(w io.Writer, err error) {
	doc := map[string]interface{}{"_error": taskerr.FromError(err)}
	data, marshalErr := json.Marshal(doc)
	if marshalErr != nil {
		fmt.Fprintf(w, "{\"_error\":{\"kind\":%q,\"msg\":%q,\"details\":{}}}\n", taskerr.KindUnexpected, err.Error())
		return
	}
	fmt.Fprintln(w, string(data))
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
