package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proofmesh-labs/proofmesh-node/internal/collector"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect one device/network snapshot and print it",
	Long: `Collect a single device/network snapshot and print it as JSON.

The snapshot is not stored or uploaded. Useful for checking what the node
would report.`,
	Args: cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		deviceCollector := collector.NewCollector(config, logger)
		record := deviceCollector.Collect(context.Background())

		out, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			fmt.Printf("Error: Failed to encode snapshot: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
