package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/httpapi"
	"github.com/marshallshelly/fenceorders/internal/migrations"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/service"
	"github.com/marshallshelly/fenceorders/pkg/migration"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until SIGINT or SIGTERM, then drain in-flight requests.

Examples:
  fenceorders serve --db postgres://localhost/fence
  fenceorders serve --addr :9000 --migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

// connect opens the pool and registers the model schemas.
func connect(ctx context.Context) (*runtime.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := runtime.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := models.RegisterAll(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runServe(ctx context.Context) error {
	if err := cfg.RequireServer(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrateOnStart {
		all, err := migrations.All()
		if err != nil {
			return err
		}
		executor := migration.NewExecutor(db)
		if err := executor.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrations: %w", err)
		}
		applied, err := executor.ApplyAll(ctx, all)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return err
	}
	svc := service.New(db, auth.NewHasher(cfg.BcryptCost), tokens, logger)
	router := httpapi.NewRouter(httpapi.Options{
		Services: svc,
		Tokens:   tokens,
		Logger:   logger,
		Metrics:  httpapi.NewMetrics(),
		Ping:     db.Ping,
	})

	return httpapi.NewServer(cfg.HTTP, router, logger).Run(ctx)
}
