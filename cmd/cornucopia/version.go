package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duarten/cornucopia/internal/update"
	"github.com/duarten/cornucopia/internal/version"
)

var versionCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())

		if !versionCheckUpdate {
			return nil
		}
		info, err := update.CheckWithCache(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking for updates: %w", err)
		}
		if info.UpdateAvailable {
			fmt.Printf("Update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
		} else {
			fmt.Println("Up to date.")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheckUpdate, "check", false, "check GitHub for a newer release")
}
