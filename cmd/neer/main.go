package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "neer",
	Short: "Groundwater policy dashboard service for Tamil Nadu districts",
	Long: `neer serves the precomputed district groundwater dataset and generates
policy narratives and four-section dossiers on demand, with persistent
caching, a per-session generation quota, and per-district cooldowns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the neer version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("neer version %s\n", version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(districtsCmd)
	rootCmd.AddCommand(narrativeCmd)
	rootCmd.AddCommand(dossierCmd)
	rootCmd.AddCommand(advisoryCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
