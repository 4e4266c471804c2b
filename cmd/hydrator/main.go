package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ThalesGroup/hydrator-plugins/internal/pipeline"
	"github.com/ThalesGroup/hydrator-plugins/pkg/config"
	"github.com/ThalesGroup/hydrator-plugins/pkg/connector/registry"
	"github.com/ThalesGroup/hydrator-plugins/pkg/driver"
	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
	"github.com/ThalesGroup/hydrator-plugins/pkg/json"
	"github.com/ThalesGroup/hydrator-plugins/pkg/logger"
	"github.com/ThalesGroup/hydrator-plugins/pkg/observability"

	// Register connectors and database drivers
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/connector/destinations/tpfs"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/connector/sources/database"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/mysql"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/postgres"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/snowflake"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/sqlite"
	_ "github.com/ThalesGroup/hydrator-plugins/pkg/driver/sqlserver"

	// Time zone names must resolve on hosts without a zoneinfo database
	_ "time/tzdata"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HYDRATOR")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "hydrator",
		Short: "Hydrator - database to time-partitioned fileset loader",
		Long: `Hydrator reads a table or query from a relational database in parallel splits
and writes the result into one time-partitioned fileset partition per run.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to the job YAML file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the job file")
	root.PersistentFlags().String("logical-time", "", "Logical start time (RFC 3339); overrides the job file")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logical_time", root.PersistentFlags().Lookup("logical-time"))

	root.AddCommand(
		newVersionCmd(),
		newListCmd(),
		newValidateCmd(v),
		newPlanCmd(v),
		newPartitionCmd(v),
		newRunCmd(v),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Hydrator v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered connectors and database drivers",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Connectors:")
			for _, info := range registry.ListConnectorInfo() {
				fmt.Fprintf(out, "  - %s (%s) %s\n", info.Name, info.Type, info.Description)
			}
			fmt.Fprintln(out, "\nDatabase drivers:")
			for _, d := range driver.List() {
				fmt.Fprintf(out, "  - %s", driver.PluginID(d.Type(), d.Name()))
				if aliases := d.Aliases(); len(aliases) > 0 {
					fmt.Fprintf(out, " %v", aliases)
				}
				fmt.Fprintln(out)
			}
		},
	}
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a job file without connecting to anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(v)
			if err != nil {
				return err
			}
			if err := pipeline.New(job).Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %q is valid\n", job.Name)
			return nil
		},
	}
}

func newPlanCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the split queries a run would execute",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			tasks, err := pipeline.New(job).Plan(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, tasks)
		},
	}
}

func newPartitionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "partition",
		Short: "Print the partition a run would claim, without claiming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(v)
			if err != nil {
				return err
			}
			key, err := pipeline.New(job).Partition()
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]interface{}{
				"path":      key.FullPath,
				"relative":  key.Path,
				"time":      key.Time,
				"timestamp": time.UnixMilli(key.Time).UTC().Format(time.RFC3339),
			})
		},
	}
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job once",
		Long: `Run a job once: plan the source splits, claim the sink partition and copy
every record into it.

Example:
  hydrator run -c orders.yaml --logical-time 2024-03-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(v)
			if err != nil {
				return err
			}

			if v.GetBool("trace") || job.TracingEnabled() {
				tcfg := observability.DefaultTracingConfig(version)
				tcfg.ServiceName = "hydrator"
				tcfg.Writer = cmd.ErrOrStderr()
				shutdown, err := observability.InitTracing(tcfg)
				if err != nil {
					return err
				}
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.Warn("failed to flush traces", zap.Error(err))
					}
				}()
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if timeout := v.GetDuration("timeout"); timeout > 0 {
				var tcancel context.CancelFunc
				ctx, tcancel = context.WithTimeout(ctx, timeout)
				defer tcancel()
			}

			res, err := pipeline.New(job).Run(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().Bool("trace", false, "Export trace spans to stderr (also enabled by observability.enable_tracing)")
	cmd.Flags().Duration("timeout", 0, "Abort the run after this duration (0 means no limit)")
	_ = v.BindPFlag("trace", cmd.Flags().Lookup("trace"))
	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

// loadJob reads the job file, applies overrides and initialises logging.
func loadJob(v *viper.Viper) (*config.JobConfig, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "a job file is required (--config or HYDRATOR_CONFIG)")
	}
	job, err := config.LoadJob(path)
	if err != nil {
		return nil, err
	}
	if lvl := v.GetString("log_level"); lvl != "" {
		job.Logging.Level = lvl
	}
	if t := v.GetString("logical_time"); t != "" {
		job.LogicalStartTime = t
	}
	if err := logger.Init(job.Logging); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging configuration")
	}
	return job, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
