package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quail",
	Short: "Quail is the persistence core for conversational bots",
	Long: `Quail manages per-user session state for a conversational bot:
fast light storage (in-process or Redis) for flow state and a
transactional relational store for durable records.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "quail.yaml", "Path to the configuration file")
}
