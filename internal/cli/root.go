package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mocktest-client/internal/config"
	"mocktest-client/internal/logger"
	"mocktest-client/internal/metrics"
)

var (
	port        string
	configPath  string
	apiURL      string
	storeDriver string
	offline     bool
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:          "mocktest",
		Short:        "Take timed mock tests against the mock test API",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "base URL of the test API (overrides config)")
	cmd.PersistentFlags().StringVar(&storeDriver, "store", "", "local store driver: memory, file, redis or postgres")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "use the built-in question bank instead of the API")

	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewTakeCmd(&configPath))
	cmd.AddCommand(NewResumeCmd(&configPath))
	cmd.AddCommand(NewResultsCmd(&configPath))
	cmd.AddCommand(NewAnalysisCmd(&configPath))
	cmd.AddCommand(NewHistoryCmd(&configPath))
	cmd.AddCommand(NewLoginCmd(&configPath))
	cmd.AddCommand(NewRegisterCmd(&configPath))
	cmd.AddCommand(NewLogoutCmd(&configPath))
	return cmd
}

// loadConfig reads the config, applies global flag overrides and sets up logging.
func loadConfig(path string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
	}
	if storeDriver != "" {
		cfg.Store.Driver = storeDriver
	}
	if offline {
		cfg.API.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	metrics.Init()
	return cfg, log, nil
}
