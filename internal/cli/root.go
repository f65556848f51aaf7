// Package cli implements the ssa-classifier command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/totoccar/SpaceSituationalAwareness/internal/classify"
	"github.com/totoccar/SpaceSituationalAwareness/internal/config"
	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
	"github.com/totoccar/SpaceSituationalAwareness/internal/logging"
	"github.com/totoccar/SpaceSituationalAwareness/internal/metrics"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// app is the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "ssa-classifier",
		Short: "Classify orbital objects from Two-Line Element sets",
		Long: `ssa-classifier parses Two-Line Element sets, propagates them with SGP4,
derives orbital features and labels each object as payload, rocket body,
debris or unknown, with probabilities and a human-readable reason.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (SSA_*)
  3. Config file (./config.yaml or ~/.ssa-classifier/config.yaml)
  4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml, then $HOME/.ssa-classifier/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json, text)")

	// Bind flags to viper
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", pf.Lookup("log-format"))

	root.AddCommand(
		newServeCmd(a),
		newClassifyCmd(a),
		newBatchCmd(a),
		newCatalogCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// logger builds the configured logger writing to w.
func (a *app) logger(w io.Writer) *slog.Logger {
	return logging.New(logging.Config{Level: a.cfg.Logging.Level, Format: a.cfg.Logging.Format}, w)
}

// engine builds a classification engine from the loaded configuration.
func (a *app) engine(logger *slog.Logger) (*engine.Engine, error) {
	e, err := engine.New(
		engine.WithClassifier(classify.NewHeuristic(a.cfg.Classifier.Weights)),
		engine.WithDefaultThreshold(a.cfg.Classifier.Threshold),
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithRecorder(metrics.Recorder{}),
	)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}
	return e, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// The version must print even with a broken config file.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ssa-classifier %s (model %s)\n", Version, classify.HeuristicVersion)
		},
	}
}
