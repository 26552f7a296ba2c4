package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostpulse/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "hostpulse",
		Short: "Host telemetry agent and collector",
		Long: "hostpulse reports periodic host telemetry (CPU, memory, disk, load,\n" +
			"uptime, network throughput) from agents to a central collector that\n" +
			"keeps the latest state per device and classifies hosts online/offline.",
		SilenceUsage: true,
	}

	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the sampling agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewAgent()
			if err := cfg.Load(cmd); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runAgent(cfg)
		},
	}
	config.AddAgentFlags(agentCmd)

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewServer()
			if err := cfg.Load(cmd); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServer(cfg)
		},
	}
	config.AddServerFlags(serverCmd)

	root.AddCommand(agentCmd, serverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
