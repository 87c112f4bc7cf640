package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the http control surface, the log stream and the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}

		if err := a.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start app: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
