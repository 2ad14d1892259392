package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/darianrosebrook/agent-agency/pkg/core"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim unreachable objects",
	Long: `Garbage-collect objects no ref reaches. Payloads with journaled writes
still in flight are spared. Mode "mark" only reports reachability, "sweep"
deletes unreachable objects, "repack" additionally consolidates live objects
into a single pack file.

GC excludes concurrent snapshots for its duration.`,
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

		var opts []core.GCOption
		if params.gc.timeout != "" {
			d, err := time.ParseDuration(params.gc.timeout)
			if err != nil {
				wrapFatalln("parse timeout", err)
				return
			}
			opts = append(opts, core.GCTimeout(d))
		}

		result, err := store.GC(ctx, core.GCMode(params.gc.mode), opts...)
		if err != nil {
			wrapFatalln("gc", err)
			return
		}
		infoLogger.Printf("marked %d reachable, swept %d, packs built %d, packs deleted %d",
			result.Marked, result.Swept, result.PacksBuilt, result.PacksDeleted)
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
	gcCmd.Flags().StringVar(&params.gc.mode, "mode", string(core.GCSweep),
		"Collection mode: mark, sweep or repack")
	gcCmd.Flags().StringVar(&params.gc.timeout, "timeout", "",
		"Wall-clock bound on the run, e.g. 30m (default 1h)")
}
