// Package cmd implements the hyparm subcommands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hyparm/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "hyparm",
	Short: "ARMv7 privileged-state and interrupt virtualization core",
	Long: `hyparm models the privileged state of an ARMv7 guest: the CP15 system
control coprocessor, the OMAP35xx interrupt controller and exception entry.

Use it to inspect the reset state or to replay a script of trapped guest
operations against a fresh VM.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Board configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the board)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadBoard returns the board from --config, or the default board.
func loadBoard() (*config.Board, error) {
	board := config.Default()
	if configPath != "" {
		var err error
		board, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		board.LogLevel = logLevel
	}
	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board configuration: %w", err)
	}
	return board, nil
}

// newLogger writes text records at the board's level to w.
func newLogger(board *config.Board, w io.Writer) *slog.Logger {
	level, err := board.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func stderrLogger(board *config.Board) *slog.Logger {
	return newLogger(board, os.Stderr)
}
