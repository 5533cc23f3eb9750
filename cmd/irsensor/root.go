package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/config"
)

// configEnvVar names the environment variable holding the config path.
const configEnvVar = "IRSENSOR_CONFIG"

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts the service.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "irsensor",
		Short: "HTTP endpoint for an infrared proximity sensor",
		Long: `irsensor exposes an infrared proximity sensor over HTTP.

Every request to the sensor endpoint runs the privileged probe script
once and returns its JSON result. Detection events carry a random
verification token.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configPath)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "probe",
		Short: "Run the sensor probe once and print the JSON result",
		Long: `Run the sensor probe once, exactly as the HTTP endpoint would, and print
the response body to stdout. The exit status is 1 when the read fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return probeOnce(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	})

	return root
}

// serve loads the configuration and runs the service until the command's
// context is cancelled.
func serve(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	return run(cmd.Context(), cfg)
}

// getConfigPath returns the configuration file path.
// Checks the flag value first, then IRSENSOR_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig resolves and loads the configuration file.
func loadConfig(flagValue string) (*config.Config, error) {
	path := getConfigPath(flagValue)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
