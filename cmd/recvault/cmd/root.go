package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recvault",
	Short: "Recvault records and restores versioned workspace snapshots",
	Long: `Recvault is a crash-safe, content-addressable snapshot store.

It records filesystem states produced during task execution as immutable,
deduplicated snapshots, links them to per-task refs, and restores or compares
any recorded state later. Secret material is screened on the way in.
`,
}

var (
	// globals used to patch over calls to os.Exit() during test
	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf

	// infoLogger wraps informative messages to os.Stdout without cluttering
	// expected output in tests
	infoLogger = log.New(os.Stdout, "", 0)
)

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
	} else {
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addStoreFlag(rootCmd)
	addLogLevelFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	viper.SetDefault("store", defaultStorePath())
	viper.SetDefault("loglevel", "none")
	if cfg := os.Getenv("RECVAULT_CONFIG"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.recvault")
		viper.AddConfigPath("/etc/recvault")
		viper.SetConfigName("recvault")
	}
	viper.SetEnvPrefix("recvault")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recvault"
	}
	return home + "/.recvault/store"
}
