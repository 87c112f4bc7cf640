package cmd

import (
	"fmt"
	"strconv"

	"github.com/JeseKi/fisco-autolight-client/internal/lifecycle"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the light node status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd)
		if err != nil {
			return err
		}

		fmt.Println(renderStatus(cfg.NodeDir, a.Status(cmd.Context())))
		return nil
	},
}

func renderStatus(dir string, status lifecycle.NodeStatus) string {
	t := table.NewWriter()

	height := "-"
	if status.BlockHeight >= 0 {
		height = strconv.FormatInt(status.BlockHeight, 10)
	}

	pid := "-"
	if status.PID != 0 {
		pid = strconv.Itoa(status.PID)
	}

	nodeID := status.NodeID
	if nodeID == "" {
		nodeID = "-"
	}

	t.AppendHeader(table.Row{
		"Directory",
		"State",
		"Running",
		"PID",
		"Node ID",
		"Block height",
		"Peers",
	})
	t.AppendRow(table.Row{
		dir,
		status.State,
		status.Running,
		pid,
		nodeID,
		height,
		status.PeerCount,
	})

	t.SetStyle(table.StyleLight)
	return t.Render()
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
