package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/proofmesh-labs/proofmesh-node/internal/collector"
	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/pipeline"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proofmesh node",
	Long: `Start the proofmesh node daemon.

This will:
- Open the local database
- Start the monitoring server (/health, /metrics)
- Begin periodic device/network collection and proof uploads`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("Starting proofmesh node...", "cli")

		pidManager, err := utils.NewPIDManager(config)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to create PID manager: %v", err), "cli")
			os.Exit(1)
		}

		// Check if another instance is already running
		if existingPID, err := pidManager.ReadPID(); err == nil {
			if pidManager.IsProcessRunning(existingPID) {
				logger.Error(fmt.Sprintf("Another instance is already running with PID: %d", existingPID), "cli")
				fmt.Printf("Another instance is already running with PID: %d\n", existingPID)
				fmt.Println("Use 'proofmesh stop' to stop the existing instance first")
				os.Exit(1)
			} else {
				// Clean up stale PID file
				pidManager.RemovePIDFile()
			}
		}

		currentPID := os.Getpid()
		if err := pidManager.WritePID(currentPID); err != nil {
			logger.Error(fmt.Sprintf("Failed to write PID file: %v", err), "cli")
			os.Exit(1)
		}

		defer func() {
			if err := pidManager.RemovePIDFile(); err != nil {
				logger.Warn(fmt.Sprintf("Failed to remove PID file: %v", err), "cli")
			}
		}()

		logger.Info(fmt.Sprintf("Node started with PID: %d", currentPID), "cli")

		db, err := database.NewSQLiteManager(config)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to open database: %v", err), "cli")
			os.Exit(1)
		}

		monitoringServer := utils.NewMonitoringServer(config, logger)
		if err := monitoringServer.Start(); err != nil {
			logger.Error(fmt.Sprintf("Failed to start monitoring server: %v", err), "cli")
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("Monitoring server started on port %s", monitoringServer.GetPort()), "cli")

		deviceCollector := collector.NewCollector(config, logger)
		proofClient := pipeline.NewProofClient(config, logger)
		p := pipeline.NewPipeline(config, logger, db, deviceCollector, proofClient)
		p.Start()

		// Periodic database maintenance
		maintenanceDone := make(chan struct{})
		go func() {
			interval := config.GetConfigDuration("db_maintenance_interval", 6*time.Hour)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-maintenanceDone:
					return
				case <-ticker.C:
					if err := db.PerformMaintenance(); err != nil {
						logger.Warn(fmt.Sprintf("Database maintenance failed: %v", err), "cli")
					}
				}
			}
		}()

		fmt.Println("Proofmesh node is running. Press Ctrl+C to stop.")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		cleanup := func() {
			logger.Info("Shutdown signal received, stopping node...", "cli")

			close(maintenanceDone)
			p.Stop()

			if err := monitoringServer.Stop(); err != nil {
				logger.Error(fmt.Sprintf("Error stopping monitoring server: %v", err), "cli")
			}

			if err := db.Close(); err != nil {
				logger.Error(fmt.Sprintf("Error closing database: %v", err), "cli")
			}

			if err := pidManager.RemovePIDFile(); err != nil {
				logger.Warn(fmt.Sprintf("Failed to remove PID file: %v", err), "cli")
			}

			logger.Info("Proofmesh node stopped successfully", "cli")
		}

		go func() {
			<-sigChan
			cleanup()
			os.Exit(0)
		}()

		// Block forever; shutdown happens in the signal handler
		done := make(chan bool)
		<-done
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
