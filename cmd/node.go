package cmd

import (
	"fmt"
	"os"

	"github.com/JeseKi/fisco-autolight-client/internal/stream"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the deployed light node",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}

		sub := a.Broadcaster().Attach()
		defer sub.Close()

		err = a.StartNode(cmd.Context())
		drain(sub.C())
		if err != nil {
			return err
		}

		fmt.Println("node is running")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the deployed light node",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}

		sub := a.Broadcaster().Attach()
		defer sub.Close()

		err = a.StopNode(cmd.Context())
		drain(sub.C())
		if err != nil {
			return err
		}

		fmt.Println("node is stopped")
		return nil
	},
}

var sdkCertCmd = &cobra.Command{
	Use:   "sdk-cert",
	Short: "Issue a console sdk certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd)
		if err != nil {
			return err
		}

		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}
		nodeID, err := cmd.Flags().GetString("node-id")
		if err != nil {
			return err
		}

		bundle, err := a.IssueSDKCertificate(cmd.Context(), dir, nodeID)
		if err != nil {
			return err
		}

		fmt.Println(bundle.KeyPath)
		fmt.Println(bundle.CertPath)
		fmt.Println(bundle.CAPath)
		return nil
	},
}

// drain prints the lines published so far
func drain(lines <-chan stream.Line) {
	for {
		select {
		case line := <-lines:
			fmt.Fprintf(os.Stdout, "[%s] %s\n", line.Source, line.Text)
		default:
			return
		}
	}
}

func init() {
	sdkCertCmd.Flags().String("dir", "", "directory receiving sdk.key, sdk.crt and ca.crt, defaults to the console conf directory")
	sdkCertCmd.Flags().String("node-id", "", "node id sent to the authority, defaults to the deployed node id")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(sdkCertCmd)
}
