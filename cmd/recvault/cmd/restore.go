package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <ref-or-digest>",
	Short: "Materialize a snapshot onto a directory",
	Long: `Restore the snapshot named by a ref or a commit digest onto a target
directory. Every payload is re-verified against its digest on the way out.`,
	Args: cobra.ExactArgs(1),
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

		if err := store.RestorePath(ctx, args[0], params.restore.target); err != nil {
			wrapFatalln("restore", err)
			return
		}
		infoLogger.Printf("restored %s to %s", args[0], params.restore.target)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringVar(&params.restore.target, "target", ".",
		"Directory to restore onto")
}
