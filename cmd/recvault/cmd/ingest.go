package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/darianrosebrook/agent-agency/pkg/core"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record a directory as a snapshot",
	Long: `Record the contents of a directory as an immutable snapshot and link it
to the task's ref. Unchanged files deduplicate against prior snapshots.
Content matching a blocking secret rule aborts the whole ingest.`,
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

		var opts []core.IngestOption
		if params.ingest.ref != "" {
			opts = append(opts, core.IngestRef(params.ingest.ref))
		}
		if params.ingest.author != "" {
			opts = append(opts, core.IngestAuthor(params.ingest.author))
		}
		if params.ingest.message != "" {
			opts = append(opts, core.IngestMessage(params.ingest.message))
		}

		snap, err := store.IngestPath(ctx, params.ingest.source, params.ingest.task, opts...)
		if err != nil {
			wrapFatalln("ingest", err)
			return
		}
		infoLogger.Printf("recorded %s as %s (tree %s)", params.ingest.source, snap.Commit, snap.Tree)
		infoLogger.Printf("ref %s -> %s", snap.Ref, snap.Commit)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	addTaskFlag(ingestCmd)
	ingestCmd.Flags().StringVar(&params.ingest.source, "source", ".",
		"Directory to record")
	ingestCmd.Flags().StringVar(&params.ingest.ref, "ref", "",
		"Ref to link the snapshot to (default: the task id)")
	ingestCmd.Flags().StringVar(&params.ingest.author, "author", "",
		"Author recorded on the commit")
	ingestCmd.Flags().StringVar(&params.ingest.message, "message", "",
		"Message recorded on the commit")
}
