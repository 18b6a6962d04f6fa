package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/emergent-company/emergent.kos/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kosctl\n")
			fmt.Fprintf(out, "  Version:    %s\n", version.Version)
			fmt.Fprintf(out, "  Commit:     %s\n", version.GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", version.BuildTime)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
