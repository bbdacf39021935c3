package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"serverhub/internal/config"
)

var (
	Config     *config.Config
	GatewayURL string
)

var RootCmd = &cobra.Command{
	Use:   "serverhub",
	Short: "Dashboard and CLI for Minecraft servers behind a gateway",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if GatewayURL != "" {
			cfg.GatewayURL = GatewayURL
		}
		Config = cfg
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&GatewayURL, "gateway", "", "Gateway base URL (overrides config and SERVERHUB_GATEWAY_URL)")
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
