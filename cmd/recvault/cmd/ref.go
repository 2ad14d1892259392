package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Inspect and manage refs",
}

var refListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every ref and the commit it points at",
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

		live, err := store.ListRefs(ctx)
		if err != nil {
			wrapFatalln("list refs", err)
			return
		}
		for _, ref := range live {
			infoLogger.Printf("%s %s", ref.Digest, ref.Name)
		}
	},
}

var refDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a ref, ending retention for its snapshots",
	Long: `Delete a ref. The snapshots behind it stay on disk until the next gc
run reclaims whatever no other ref reaches.`,
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

		if err := store.DeleteRef(ctx, args[0]); err != nil {
			wrapFatalln("delete ref", err)
			return
		}
		infoLogger.Printf("deleted ref %s", args[0])
	},
}

func init() {
	rootCmd.AddCommand(refCmd)
	refCmd.AddCommand(refListCmd)
	refCmd.AddCommand(refDeleteCmd)
}
