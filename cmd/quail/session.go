package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	quail "github.com/quailbot/quail"
	"github.com/quailbot/quail/internal/config"
	"github.com/quailbot/quail/pkg/flow"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and clear stored flow sessions",
	Long: `Operates on the configured light backend directly. Useful against the
Redis backend; with the in-process backend there is no shared state to
inspect from a separate process.`,
}

// openFlow builds a short-lived App for one CLI operation.
func openFlow(cmd *cobra.Command) (*quail.App, *flow.Store, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	key, err := cfg.SessionEncryptionKey()
	if err != nil {
		return nil, nil, err
	}
	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, err
	}

	opts := quail.Options{
		DatabaseDSN:     cfg.Database.DSN,
		SessionTTL:      cfg.Session.TTL.Std(),
		EncryptionKey:   key,
		RedisKeyPrefix:  redisOpts.KeyPrefix,
		RedisLockPrefix: redisOpts.LockPrefix,
	}
	if cfg.RemoteLight() {
		opts.RedisURL = cfg.Redis.URL
	}

	app, err := quail.Open(cmd.Context(), opts)
	if err != nil {
		return nil, nil, err
	}
	return app, app.Flow, nil
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <conversation-id>",
	Short: "Print the flow state of a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, store, err := openFlow(cmd)
		if err != nil {
			fmt.Printf("Error opening persistence core: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		state, ok, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		if !ok {
			fmt.Printf("No state for conversation '%s'.\n", args[0])
			return
		}

		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling state: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <conversation-id>",
	Short: "Remove the flow state of a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, store, err := openFlow(cmd)
		if err != nil {
			fmt.Printf("Error opening persistence core: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		if err := store.Clear(cmd.Context(), args[0]); err != nil {
			fmt.Printf("Error clearing session '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Cleared '%s'.\n", args[0])
	},
}

func init() {
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
