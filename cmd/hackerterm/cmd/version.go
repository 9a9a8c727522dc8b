package cmd

import (
	"fmt"

	"github.com/Dicklesworthstone/hackerterm/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}
