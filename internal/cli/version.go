// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information (overridden at build time with -ldflags -X)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func versionData() VersionData {
	return VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := versionData()
			out := cmd.OutOrStdout()
			if global.json {
				return NewJSONResponse("version", v).Print(out)
			}
			fmt.Fprintf(out, "geltek %s\n", v.Version)
			fmt.Fprintf(out, "  Commit:   %s\n", v.GitCommit)
			fmt.Fprintf(out, "  Built:    %s\n", v.BuildDate)
			fmt.Fprintf(out, "  Go:       %s\n", v.GoVersion)
			fmt.Fprintf(out, "  Platform: %s\n", v.Platform)
			return nil
		},
	}
}
