package cmd

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"ingest": false, "restore": false, "diff": false,
		"gc": false, "fsck": false, "ref": false, "log": false,
	}
	for _, sub := range rootCmd.Commands() {
		if _, ok := expected[sub.Name()]; ok {
			expected[sub.Name()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "command %q not registered", name)
	}
}

func TestOpenStoreOnFreshRoot(t *testing.T) {
	viper.Set("store", t.TempDir())
	viper.Set("loglevel", "none")
	defer viper.Reset()

	store, err := openStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
