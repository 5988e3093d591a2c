package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neonotify/neonotify/version"
)

var verbose bool

// VersionCmd prints the version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return nil
		}
		values, err := json.MarshalIndent(struct {
			NeoNotify    string `json:"neonotify"`
			GitCommit    string `json:"git_commit,omitempty"`
			StoreVersion uint64 `json:"store_version"`
		}{
			NeoNotify:    version.Version,
			GitCommit:    version.GitCommit,
			StoreVersion: version.StoreVersion,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(values))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show the store layout version too")
}
