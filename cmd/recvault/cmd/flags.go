package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/darianrosebrook/agent-agency/pkg/core"
	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
)

type flagsT struct {
	root struct {
		store    string
		logLevel string
	}
	ingest struct {
		source  string
		task    string
		ref     string
		author  string
		message string
	}
	restore struct {
		target string
	}
	gc struct {
		mode    string
		timeout string
	}
	fsck struct {
		refs    []string
		reindex bool
	}
	logLimit int
}

var params flagsT

func addStoreFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&params.root.store, "store", "",
		"Path to the snapshot store root (default $HOME/.recvault/store)")
	_ = viper.BindPFlag("store", cmd.PersistentFlags().Lookup("store"))
}

func addLogLevelFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&params.root.logLevel, "loglevel", "",
		"Log level: none, info or debug")
	_ = viper.BindPFlag("loglevel", cmd.PersistentFlags().Lookup("loglevel"))
}

func addTaskFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&params.ingest.task, "task", "", "Task id the snapshot belongs to")
	_ = cmd.MarkFlagRequired("task")
}

// openStore builds a store handle from the resolved configuration
func openStore(ctx context.Context) (*core.Store, error) {
	logger, err := dlogger.GetLogger(viper.GetString("loglevel"))
	if err != nil {
		return nil, err
	}
	return core.Open(ctx, viper.GetString("store"), core.Logger(logger))
}
