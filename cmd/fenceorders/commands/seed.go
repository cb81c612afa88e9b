package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/service"
)

var (
	adminUsername string
	adminEmail    string
	adminPassword string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the first administrator",
	Long: `Create an administrator account. When the email is already registered the
existing account is promoted instead, so it is safe to run on every deploy.

Examples:
  fenceorders seed-admin --username admin --email admin@example.com --password s3cret!`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeedAdmin(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
	seedAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "Administrator username")
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Administrator email")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password")
}

func runSeedAdmin(ctx context.Context) error {
	if adminEmail == "" || adminPassword == "" {
		return errors.New("--email and --password are required")
	}
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.New(db, auth.NewHasher(cfg.BcryptCost), nil, logger)
	user, created, err := svc.Users.Bootstrap(ctx, service.CreateUserInput{
		Username: adminUsername,
		Email:    adminEmail,
		Password: adminPassword,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printer.JSON(map[string]any{"created": created, "user": user})
	}
	if created {
		printer.Success("Created administrator %s (id %d)", user.Username, user.ID)
	} else {
		printer.Warning("User %s already exists, promoted to administrator", user.Email)
	}
	return nil
}
