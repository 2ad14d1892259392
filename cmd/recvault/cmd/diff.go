package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <older> <newer>",
	Short: "Compare two snapshots",
	Long: `List the file-level changes between two snapshots, each named by a ref
or a commit digest. Identical subtrees are skipped without reading them.`,
	Args: cobra.ExactArgs(2),
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

		changes, err := store.Diff(ctx, args[0], args[1])
		if err != nil {
			wrapFatalln("diff", err)
			return
		}
		for _, change := range changes {
			infoLogger.Printf("%-9s %s", change.Kind, change.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
