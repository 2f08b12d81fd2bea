package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/server"
)

// newServeCmd creates the "sharddb serve" subcommand.
func newServeCmd() *cobra.Command {
	var (
		cfgPath    string
		dataDir    string
		socketPath string
		partitions int
		debugMode  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sharddb server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("socket") {
				cfg.IPC.SocketPath = socketPath
			}
			if cmd.Flags().Changed("partitions") {
				cfg.Cluster.PartitionCount = partitions
			}
			if debugMode {
				cfg.IPC.DebugMode = true
			}

			logr := logger.Default()
			if cfg.IPC.DebugMode {
				logr.SetLevel(logger.LevelDebug)
			}

			logr.Info("Starting sharddb...")
			logr.Info("Data directory: %s", cfg.DataDir)
			logr.Info("Socket: %s", cfg.IPC.SocketPath)
			logr.Info("Partitions: %d", cfg.Cluster.PartitionCount)

			app, err := server.New(cfg, logr)
			if err != nil {
				return err
			}
			if err := app.Start(); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			<-sigChan
			logr.Info("Shutting down...")
			app.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to config file (optional)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for the catalog artifact")
	cmd.Flags().StringVar(&socketPath, "socket", "/tmp/sharddb.sock", "Unix socket path")
	cmd.Flags().IntVar(&partitions, "partitions", 0, "Partition count (default from config)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFile(path)
}
