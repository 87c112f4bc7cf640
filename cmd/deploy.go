package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/JeseKi/fisco-autolight-client/app"
	"github.com/JeseKi/fisco-autolight-client/internal/stream"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a light node into the configured directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}

		var input app.DeployInput
		if input.Ports, err = cmd.Flags().GetString("ports"); err != nil {
			return err
		}
		if input.Layout, err = cmd.Flags().GetString("layout"); err != nil {
			return err
		}
		if cmd.Flags().Changed("force") {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			input.ForceRebuild = &force
		}

		sub := a.Broadcaster().Attach()
		done := make(chan struct{})
		go func() {
			defer close(done)
			printLines(os.Stdout, sub.C())
		}()

		result := a.Deploy(cmd.Context(), input)
		sub.Close()
		<-done

		if !result.Success {
			return fmt.Errorf("deployment failed: %s", result.Message)
		}

		fmt.Printf("node %s deployed to %s\n", result.NodeID, result.NodeDir)
		return nil
	},
}

func printLines(w io.Writer, lines <-chan stream.Line) {
	for line := range lines {
		fmt.Fprintf(w, "%s [%s] %s\n", line.Time.Format("15:04:05"), line.Source, line.Text)
	}
}

func init() {
	deployCmd.Flags().Bool("force", false, "replace an existing deployment")
	deployCmd.Flags().String("ports", "", "p2p,rpc port pair, defaults to PORTS")
	deployCmd.Flags().String("layout", "", "node layout, defaults to LAYOUT")

	rootCmd.AddCommand(deployCmd)
}
