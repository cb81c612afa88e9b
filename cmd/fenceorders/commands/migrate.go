package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/fenceorders/cmd/fenceorders/tui"
	"github.com/marshallshelly/fenceorders/internal/migrations"
	"github.com/marshallshelly/fenceorders/pkg/migration"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

var (
	// Migrate flags
	upSteps     int
	downSteps   int
	interactive bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run the schema migrations embedded in the binary.

Subcommands:
  up      - Apply pending migrations
  down    - Roll back applied migrations
  status  - Show migration status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations in version order. Failed migrations are retried.

Examples:
  fenceorders migrate up               # Apply all pending migrations
  fenceorders migrate up --steps 1     # Apply the next migration
  fenceorders migrate up -i            # Pick a target interactively`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), tui.ActionUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long: `Roll back applied migrations, newest first.

Examples:
  fenceorders migrate down             # Roll back the last migration
  fenceorders migrate down --steps 2   # Roll back the last two
  fenceorders migrate down -i          # Pick a target interactively`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), tui.ActionDown)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the status of every embedded migration (pending, applied, failed).

Examples:
  fenceorders migrate status
  fenceorders migrate status --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateUpCmd.Flags().IntVar(&upSteps, "steps", 0, "Number of migrations to apply (0 applies all)")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 1, "Number of migrations to roll back")
}

func openExecutor(ctx context.Context) (*runtime.DB, *migration.Executor, []migration.Migration, error) {
	all, err := migrations.All()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	executor := migration.NewExecutor(db)
	if err := executor.Initialize(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return db, executor, all, nil
}

// selectSteps picks what a non-interactive run touches: pending migrations
// oldest first going up, applied migrations newest first going down.
// n <= 0 means all of them.
func selectSteps(action tui.Action, records []migration.MigrationRecord, all []migration.Migration, n int) []migration.Migration {
	var picked []migration.Migration
	if action == tui.ActionUp {
		for i, r := range records {
			if r.Status != migration.StatusApplied {
				picked = append(picked, all[i])
			}
		}
	} else {
		for i := len(records) - 1; i >= 0; i-- {
			if records[i].Status == migration.StatusApplied {
				picked = append(picked, all[i])
			}
		}
	}
	if n > 0 && n < len(picked) {
		picked = picked[:n]
	}
	return picked
}

func runMigrate(ctx context.Context, action tui.Action) error {
	db, executor, all, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if interactive {
		return tui.Run(ctx, action, executor, all)
	}

	records, err := executor.Status(ctx, all)
	if err != nil {
		return err
	}
	n := upSteps
	if action == tui.ActionDown {
		n = max(downSteps, 1)
	}
	picked := selectSteps(action, records, all, n)
	if len(picked) == 0 {
		printer.Info("Nothing to %s", action)
		return nil
	}

	printer.Section(fmt.Sprintf("Migrate %s", action))
	for _, m := range picked {
		if action == tui.ActionUp {
			err = executor.Apply(ctx, m)
		} else {
			err = executor.Rollback(ctx, m)
		}
		if err != nil {
			printer.Error("%s %s: %v", m.Version, m.Name, err)
			return err
		}
		logger.Info("migration "+string(action), zap.String("version", m.Version), zap.String("name", m.Name))
		printer.Success("%s %s", m.Version, m.Name)
	}
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	db, executor, all, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := executor.Status(ctx, all)
	if err != nil {
		return err
	}
	return printer.MigrationStatus(records)
}
