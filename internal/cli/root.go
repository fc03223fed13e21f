package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
)

var (
	cfgFile    string
	memoryRoot string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "memsync",
	Short: "Memory filesystem synchronization",
	Long: `memsync - keep a local Markdown memory tree and a remote block store in step.

Local files are the editing surface, remote memory blocks are what the
agent reads. memsync classifies drift between the two, surfaces true
conflicts for review, and applies explicit per-label resolutions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if s := syncerrors.Suggestion(err); s != "" {
			fmt.Fprintln(os.Stderr, "Hint:", s)
		}
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./memsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&memoryRoot, "root", "", "memory root directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("memsync")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
