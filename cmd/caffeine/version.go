package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...";
// it stays "dev" for local builds, the way medusa's version package
// resolves to a placeholder outside a release build.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("caffeine " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
