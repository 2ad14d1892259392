package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/darianrosebrook/agent-agency/pkg/core"
	"github.com/darianrosebrook/agent-agency/pkg/model"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Verify store integrity",
	Long: `Walk the object graph from the ref table, re-hashing every reachable
object, and report damage. The store is never mutated. With --reindex the
disposable location index is rebuilt from pack headers first.

Exit status is 0 for a clean store, 1 with warnings, 2 with corruption.`,
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

		if params.fsck.reindex {
			if err := store.Reindex(ctx); err != nil {
				wrapFatalln("reindex", err)
				return
			}
		}

		var opts []core.FsckOption
		if len(params.fsck.refs) > 0 {
			opts = append(opts, core.FsckRefs(params.fsck.refs...))
		}
		report, err := store.Fsck(ctx, opts...)
		if err != nil {
			wrapFatalln("fsck", err)
			return
		}
		out, err := yaml.Marshal(report)
		if err != nil {
			wrapFatalln("render report", err)
			return
		}
		infoLogger.Print(string(out))

		switch report.Status {
		case model.FsckWarnings:
			os.Exit(1)
		case model.FsckCorrupt:
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(fsckCmd)
	fsckCmd.Flags().StringSliceVar(&params.fsck.refs, "ref", nil,
		"Restrict the check to these refs (repeatable)")
	fsckCmd.Flags().BoolVar(&params.fsck.reindex, "reindex", false,
		"Rebuild the location index from pack headers before checking")
}
