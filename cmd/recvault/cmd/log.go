package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <ref-or-digest>",
	Short: "Show snapshot history, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		store, err := openStore(ctx)
		if err != nil {
			wrapFatalln("open store", err)
			return
		}
		defer func() {
			_ = store.Close()
		}()

		history, err := store.Log(ctx, args[0], params.logLimit)
		if err != nil {
			wrapFatalln("log", err)
			return
		}
		for _, entry := range history {
			infoLogger.Printf("commit %s", entry.Digest)
			infoLogger.Printf("  task:   %s", entry.Commit.TaskID)
			if entry.Commit.Author != "" {
				infoLogger.Printf("  author: %s", entry.Commit.Author)
			}
			infoLogger.Printf("  date:   %s", entry.Commit.Timestamp)
			if entry.Commit.Message != "" {
				infoLogger.Printf("  %s", entry.Commit.Message)
			}
			infoLogger.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVar(&params.logLimit, "limit", 0,
		"Stop after this many commits (0 walks the whole chain)")
}
