package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

var (
	configPath string
	config     *utils.ConfigManager
	logger     *utils.LogsManager
)

var rootCmd = &cobra.Command{
	Use:   "proofmesh",
	Short: "Proofmesh device node",
	Long: `A headless node that manages multi-chain wallets and periodically
collects device and network snapshots for upload to the proofmesh API.

Wallet keys are derived locally and stored in the operating system keyring;
they never touch the database or the network.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config = utils.NewConfigManager(configPath)
		logger = utils.NewLogsManager(config)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
}
