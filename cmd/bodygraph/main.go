// Command bodygraph resolves Human Design charts and draws them as SVG,
// either as a batch CLI or as an HTTP service.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/talgya/bodygraph/internal/api"
	"github.com/talgya/bodygraph/internal/config"
	"github.com/talgya/bodygraph/internal/geometry"
)

// Version is overridden at link time.
var Version = "0.1.0"

const appName = "bodygraph"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries state shared by subcommands once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Bodygraph resolver and renderer",
		Long: `bodygraph turns gate activations into a bodygraph: complete channels,
defined centers and a layered SVG diagram.

Charts are JSON documents of the form
  {"gateActivations": {"1": "personality", "8": "design"}, "definedCenters": ["G", "Throat"]}
When definedCenters is omitted the centers are derived from the channels.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(
		serveCmd(a),
		renderCmd(a),
		referenceCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (geometry %s)\n",
					appName, Version, geometry.Default().Version())
			},
		},
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, err := config.ParseLevel(a.logLevel); err != nil {
			return err
		}
		cfg.Log.Level = a.logLevel
	}
	config.SetupLogging(cmd.ErrOrStderr(), cfg.Log.Level)
	a.cfg = cfg
	return nil
}

func referenceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "Print the gate, channel and center tables as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.BuildReference(geometry.Default()))
		},
	}
}
