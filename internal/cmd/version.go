package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	name := "ntbatch"
	if id := GetAppIdentity(); id != nil && id.BinaryName != "" {
		name = id.BinaryName
	}
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s/%s)",
		name, versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
