package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rrepohub/rrepohub-backend/initializers"
)

func main() {
	root := &cobra.Command{
		Use:           "rrepohub",
		Short:         "RRepoHUB resource repository API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema and exit",
			RunE:  runMigrate,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the database shared by every
// subcommand.
func bootstrap() (*initializers.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := initializers.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := initializers.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := initializers.ConnectToDatabase(cfg.DBURL, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	return initializers.Migrate(db, log)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := initializers.Migrate(db, log); err != nil {
		return err
	}
	return serve(cmd.Context(), cfg, log, db)
}
