package main

import (
	"log"
	"time"

	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/cli"
	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL     = "http://localhost:3000"
	defCoordinatorTimeout = 30 * time.Second
)

func main() {
	var (
		configPath     string
		coordinatorURL string
	)

	rootCmd := &cobra.Command{
		Use:   "fedavg-cli",
		Short: "Federated averaging CLI",
		Long:  `fedavg-cli is a command line interface for the federated averaging coordinator and its participants.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := fedavg.DefaultConfig()
			if configPath != "" {
				loaded, err := fedavg.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			if cmd.Flags().Changed("coordinator-url") {
				cfg.Coordinator.URL = coordinatorURL
			}

			timeout, err := fedavg.ParseDuration(cfg.Coordinator.Timeout)
			if err != nil {
				return err
			}
			if timeout == 0 {
				timeout = defCoordinatorTimeout
			}

			cli.SetConfig(cfg)
			cli.SetSDK(sdk.NewSDK(sdk.Config{
				CoordinatorURL:  cfg.Coordinator.URL,
				TLSVerification: cfg.Coordinator.TLSVerification,
				Timeout:         timeout,
			}))

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", defCoordinatorURL, "Coordinator URL")

	rootCmd.AddCommand(
		cli.NewStatusCmd(),
		cli.NewModelCmd(),
		cli.NewRegisterCmd(),
		cli.NewSubmitCmd(),
		cli.NewTrainCmd(),
		cli.NewSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
