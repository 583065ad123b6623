package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/briansoule/poa-bridge/config"
	"github.com/briansoule/poa-bridge/internal/relayer"
	"github.com/briansoule/poa-bridge/pkg/db"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "poa-bridge",
		Short: "PoA bridge withdraw relay",
		Run:   run,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	config.InitLogger()

	if err := config.Load(configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbAdapter, err := db.NewDatabaseAdapter(config.GlobalConfig.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database adapter")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := relayer.NewService(ctx, config.GlobalConfig, dbAdapter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create relayer service")
	}
	defer service.Stop()

	if err := service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Relayer stopped with error")
	}
	log.Info().Msg("Shutting down relayer...")
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"config.yaml",
		"Path to the bridge configuration file",
	)
}
