package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/cyder/internal/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// No config needed to print a version
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		info := app.GetVersionInfo()
		out := cmd.OutOrStdout()

		if !verbose {
			_, _ = fmt.Fprintln(out, info.FullString())
			return
		}

		_, _ = fmt.Fprintf(out, "cyder %s\n", info.Version)
		_, _ = fmt.Fprintf(out, "  commit:     %s\n", info.GitCommit)
		_, _ = fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		_, _ = fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		_, _ = fmt.Fprintf(out, "  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
