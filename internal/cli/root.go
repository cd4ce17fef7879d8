// Package cli wires the rosa-bag command line.
package cli

import (
	"github.com/lherman-cs/rosa-bag/internal/config"
	"github.com/lherman-cs/rosa-bag/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCommand constructs the rosa-bag command.
func NewRootCommand() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "rosa-bag",
		Short: "Inspect ROSA robot bags and export their topics to CSV",
		Long: `rosa-bag reads a rosbag recorded from the ROSA robot. It prints the bag summary,
dumps messages to the console, or exports the attention, drawing, speech and body
tracking topics to CSV files.`,
		Example: `  rosa-bag --bag session.bag --info
  rosa-bag --bag session.bag --topic /WS1/reco_stt --print
  rosa-bag --bag session.bag --topic /WS1/activebody --export --export_name body
  rosa-bag --bag session.bag --export_all --out_dir out`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), cfg)

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return Run(opts, cfg, logger, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Bag, "bag", "", "Path to bag")
	flags.StringVar(&opts.Topic, "topic", "", "Topic to output")
	flags.BoolVar(&opts.Info, "info", false, "Print rosbag info")
	flags.BoolVar(&opts.Print, "print", false, "Print the messages of --topic, or of every topic")
	flags.BoolVar(&opts.Export, "export", false, "Export --topic to CSV")
	flags.StringVar(&opts.ExportName, "export_name", "", "CSV file name, or file name prefix with --export_all")
	flags.BoolVar(&opts.ExportAll, "export_all", false, "Export every supported topic to CSV")

	flags.String("config", "", "Config file (default ./rosa.yaml or ./configs/rosa.yaml)")
	flags.String("out_dir", "", "Output directory of the CSV files")
	flags.String("compress", "", "CSV compression: none|zstd")
	flags.String("style", "", "Message style of --print: yaml|pp")
	flags.String("log_level", "", "Log level: debug|info|warn|error")
	flags.String("namespace", "", "Namespace of the robot topics (default /WS1)")

	_ = cmd.MarkFlagRequired("bag")
	cmd.MarkFlagsMutuallyExclusive("export", "export_all")

	return cmd
}

// applyFlags lets explicitly set flags win over the config file and environment.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	overrides := map[string]*string{
		"out_dir":   &cfg.Export.Dir,
		"compress":  &cfg.Export.Compression,
		"style":     &cfg.Print.Style,
		"log_level": &cfg.Log.Level,
		"namespace": &cfg.Topics.Namespace,
	}

	for name, dst := range overrides {
		if !flags.Changed(name) {
			continue
		}

		value, _ := flags.GetString(name)
		*dst = value
	}
}
