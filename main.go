package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	api "github.com/rpupo63/blog-backend/api"
	"github.com/rpupo63/blog-backend/config"
	"github.com/rpupo63/blog-backend/database"
	"github.com/rpupo63/blog-backend/models"
	"github.com/rpupo63/blog-backend/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "blog",
		Short:         "Blog API server and maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		genCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setup loads configuration and configures the global logger.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if err := cfg.ResolveSecrets(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(database.Options{
		URL:     cfg.DatabaseURL,
		ReadURL: cfg.DatabaseReadURL,
		Logger:  log.With().Str("component", "gorm").Logger(),
	})
}

func openFileStore(ctx context.Context, cfg *config.Config) (services.FileStore, error) {
	if cfg.StorageDriver == "s3" {
		return services.NewS3Store(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.S3PublicURL)
	}
	return services.NewLocalStore(cfg.MediaDir, cfg.MediaURLPrefix)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store, err := openFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	server, err := api.NewServer(cfg, database.New(db), store)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	errChannel := make(chan error, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Start(errChannel)
		return nil
	})
	g.Go(func() error {
		select {
		case err := <-errChannel:
			return err
		case <-gctx.Done():
			log.Info().Msg("shutdown signal received")
		}
		server.ShutdownGracefully(30 * time.Second)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "seed [all|users|categories|tags]",
		Short:     "Insert or update fixture data",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: append([]string{"all"}, services.SeedTargets...),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			file, _ := cmd.Flags().GetString("file")

			fx, err := services.LoadFixtures(file)
			if err != nil {
				return err
			}

			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}

			seeder := services.NewSeeder(database.New(db), log.With().Str("component", "seed").Logger())
			return seeder.Seed(cmd.Context(), target, fx)
		},
	}

	cmd.Flags().String("file", "", "YAML fixture file (defaults to the built-in fixtures)")

	return cmd
}

func genCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Schema tooling",
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Migrate and generate gorm/gen query helpers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			db, err := genDatabase(cmd.Context())
			if err != nil {
				return err
			}
			return models.GenerateModels(db, out, cmd.OutOrStdout())
		},
	}
	modelsCmd.Flags().String("out", "./generated", "output directory for generated code")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "List database columns that no model field maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := genDatabase(cmd.Context())
			if err != nil {
				return err
			}
			total, err := models.ColumnMismatchReport(db, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if total > 0 {
				return fmt.Errorf("%d unmapped columns", total)
			}
			return nil
		},
	}

	cmd.AddCommand(modelsCmd, reportCmd)
	return cmd
}

func genDatabase(ctx context.Context) (*gorm.DB, error) {
	cfg, err := setup(ctx)
	if err != nil {
		return nil, err
	}
	return openDatabase(cfg)
}
