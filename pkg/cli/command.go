// Package cli builds the service command line: serve, healthcheck, version and config.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nimburion/itemservice/pkg/config"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/version"
)

// ServiceCommandOptions plugs a service into the command tree. Subcommands
// whose callback is nil are left out.
type ServiceCommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string // APP when empty

	RunServer         func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	CheckDependencies func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	// ValidateConfig runs after the built-in validation.
	ValidateConfig func(cfg *config.Config) error

	CustomCommands []*cobra.Command
}

// NewServiceCommand returns the root command. Without a subcommand it serves.
func NewServiceCommand(opts ServiceCommandOptions) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "APP"
	}
	s := &session{opts: opts}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	s.flags.bind(root.PersistentFlags(), opts)

	root.AddCommand(s.versionCommand(), s.configCommand())
	if opts.RunServer != nil {
		serve := s.serveCommand()
		root.AddCommand(serve)
		root.RunE = serve.RunE
	}
	if opts.CheckDependencies != nil {
		root.AddCommand(s.healthcheckCommand())
	}
	root.AddCommand(opts.CustomCommands...)
	root.InitDefaultCompletionCmd()
	return root
}

func (s *session) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the item API and management servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := s.loadWithLogger()
			if err != nil {
				return err
			}
			return s.opts.RunServer(cmd.Context(), cfg, log)
		},
	}
}

func (s *session) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that the item table is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := s.loadWithLogger()
			if err != nil {
				return err
			}
			if err := s.opts.CheckDependencies(cmd.Context(), cfg, log); err != nil {
				return fmt.Errorf("dependency check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Dependencies are reachable")
			return nil
		},
	}
}

func (s *session) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current(s.opts.Name)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
			for _, row := range [][2]string{
				{"Service:", info.Service},
				{"Version:", info.Version},
				{"Commit:", info.Commit},
				{"Build Time:", info.BuildTime},
				{"Go:", info.GoVersion},
			} {
				fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
			}
			return tw.Flush()
		},
	}
}

func (s *session) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := s.load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	})

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, secrets, err := s.load()
			if err != nil {
				return err
			}
			out := cfg.Redacted(secrets)
			if reveal {
				out = cfg.String()
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	show.Flags().BoolVar(&reveal, "show-secrets", false, "print secret values in clear")
	cmd.AddCommand(show)

	return cmd
}

// Execute runs cmd and exits 1 on failure. Cancellation is not reported.
func Execute(cmd *cobra.Command) {
	err := cmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
