package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version set at build time
	Version = "dev"
	// Commit set at build time
	Commit string
)

// versionCmd prints the build the binary was made from
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the autolight version and build commit",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	commit := Commit
	if commit == "" {
		commit = "unknown"
	}

	fmt.Fprintf(w, "autolight %s (commit %s, %s %s/%s)\n", Version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
