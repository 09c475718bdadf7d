package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fareflow/config"
	"fareflow/logger"
)

// errNoFares ends the process with exit code 2.
var errNoFares = errors.New("no fare market produced a usable fare")

var (
	configPath  string
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:           "fareflow",
	Short:         "Collect the fares of a pricing transaction",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "Path to the transaction fixture")
	_ = rootCmd.MarkPersistentFlagRequired("fixture")

	rootCmd.AddCommand(collectCmd, keysCmd)
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNoFares) {
			log.WithComponent("main").Warn(err.Error())
			os.Exit(2)
		}
		log.WithComponent("main").WithError(err).Error("fareflow failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies its logging section.
func loadConfig() (*config.Config, error) {
	log := logger.GetLogger()

	cfg, err := config.LoadConfig(config.ResolvePath(configPath))
	if err != nil {
		return nil, err
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"service": cfg.Fareflow.Name,
		"version": cfg.Fareflow.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting fareflow")
	return cfg, nil
}
