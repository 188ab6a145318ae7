package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	info.GoVersion = runtime.Version()
	info.Platform = runtime.GOOS + "/" + runtime.GOARCH

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leapadmin version, build metadata and the Go runtime it was built with.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(out, "leapadmin v%s\n", info.Version)
			_, _ = fmt.Fprintf(out, "Admin Data Explorer client (%s %s)\n", info.GoVersion, info.Platform)
			if info.GitCommit != "" && info.GitCommit != "unknown" {
				_, _ = fmt.Fprintf(out, "commit %s, built %s\n", info.GitCommit, info.BuildDate)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print build information as JSON")
	return cmd
}
