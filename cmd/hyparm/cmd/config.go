package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "Output format: yaml or json")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the board configuration",
	Long: `Print the board configuration that a VM would be built with: the
default board, or the file given with --config after validation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := loadBoard()
		if err != nil {
			return err
		}

		var asYAML bool
		switch configFormat {
		case "yaml", "yml":
			asYAML = true
		case "json":
		default:
			return fmt.Errorf("unknown format %q", configFormat)
		}

		data, err := board.Marshal(asYAML)
		if err != nil {
			return fmt.Errorf("failed to serialize board config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
