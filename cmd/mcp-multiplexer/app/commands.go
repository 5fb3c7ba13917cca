// Package app provides the command-line interface of the MCP multiplexer.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

// Version is replaced at build time with -ldflags
var Version = "dev"

const binaryName = "mcp-multiplexer"

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               binaryName,
		DisableAutoGenTag: true,
		Short:             "Aggregate many MCP tool servers behind one",
		Long: `mcp-multiplexer connects to a set of MCP servers (subprocesses, streamable HTTP
or WebSocket endpoints, and built-in peers) and exposes their tools as one
namespaced catalog. Tool names are prefixed with the peer name, e.g. calc_add.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newStdioCmd(v))
	rootCmd.AddCommand(newToolsCmd(v))
	rootCmd.AddCommand(newCallCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", binaryName, Version)
		},
	}
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file without connecting to any peer.

This command checks:
- YAML/JSON syntax validity
- Peer names and types
- Required fields for each peer type
- Environment variables referenced by peers
- The session config schema, if one is configured`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := v.GetString("config")
			if path == "" {
				return errors.New("no configuration file specified, use --config flag")
			}

			cfg, _, err := loadConfig(v)
			if err != nil {
				return err
			}
			if _, err := cfg.Sources(logging.NewNop()); err != nil {
				return errors.Wrap(err, "validation failed")
			}
			if _, err := cfg.LoadConfigSchema(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration is valid: %s\n", path)
			fmt.Fprintf(out, "  Address: %s\n", cfg.Server.Addr)
			fmt.Fprintf(out, "  Peers: %d\n", len(cfg.Peers))
			for _, name := range sortedPeers(cfg) {
				fmt.Fprintf(out, "    %s (%s)\n", name, cfg.Peers[name].Type)
			}
			return nil
		},
	}
}

func newToolsCmd(v *viper.Viper) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Connect to every peer and print the aggregated tool catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatJSON && format != formatTable {
				return errors.Errorf("unknown output format %q", format)
			}

			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			m, err := connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			catalog, err := m.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			if format == formatTable {
				return printToolTable(cmd.OutOrStdout(), catalog)
			}
			return printJSON(cmd.OutOrStdout(), catalog.Flatten())
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatJSON, "Output format (json, table)")
	return cmd
}

func newCallCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "call <namespaced-tool> [json-arguments]",
		Short: "Call one tool and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arguments map[string]interface{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
					return errors.Wrap(err, "arguments must be a JSON object")
				}
			}

			cfg, logger, err := loadConfig(v)
			if err != nil {
				return err
			}
			m, err := connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			result, err := m.CallTool(cmd.Context(), args[0], arguments)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
