package service

import (
	"context"
	"fmt"

	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

// sideTableAction creates (if absent) or removes (if present) the side row
// for Role.
type sideTableAction struct {
	Role   auth.Role
	Create bool
}

var sideTableRoles = []auth.Role{auth.RoleManager, auth.RoleAdmin, auth.RoleClient}

// roleTransition plans the side-table changes for a move from old to new.
// The new role's row is always ensured, so repeating a transition is a
// no-op. old may be empty for a user that is just being created.
func roleTransition(old, new auth.Role) []sideTableAction {
	var plan []sideTableAction
	for _, r := range sideTableRoles {
		switch {
		case r == new:
			plan = append(plan, sideTableAction{Role: r, Create: true})
		case r == old:
			plan = append(plan, sideTableAction{Role: r, Create: false})
		}
	}
	return plan
}

// applyRoleTransition executes plan for user inside tx.
func applyRoleTransition(ctx context.Context, tx *runtime.Tx, user models.User, plan []sideTableAction) error {
	for _, action := range plan {
		var err error
		switch {
		case action.Role == auth.RoleManager && action.Create:
			err = ensureSideRow(ctx, tx, models.Manager{UserID: user.ID})
		case action.Role == auth.RoleManager:
			err = removeSideRow[models.Manager](ctx, tx, user.ID)
		case action.Role == auth.RoleAdmin && action.Create:
			err = ensureSideRow(ctx, tx, models.Administrator{UserID: user.ID})
		case action.Role == auth.RoleAdmin:
			err = removeSideRow[models.Administrator](ctx, tx, user.ID)
		case action.Role == auth.RoleClient && action.Create:
			err = ensureSideRow(ctx, tx, models.Client{UserID: user.ID, FullName: user.Username})
		case action.Role == auth.RoleClient:
			err = removeSideRow[models.Client](ctx, tx, user.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to sync %s side row for user %d: %w", action.Role, user.ID, err)
		}
	}
	return nil
}

// ensureSideRow inserts row unless the user already has one.
func ensureSideRow[T any](ctx context.Context, tx *runtime.Tx, row T) error {
	_, err := builder.Insert[T](tx).Values(row).OnConflictDoNothing("user_id").Exec(ctx)
	return err
}

func removeSideRow[T any](ctx context.Context, tx *runtime.Tx, userID int64) error {
	_, err := builder.Delete[T](tx).Where(builder.Eq("user_id", userID)).Exec(ctx)
	return err
}
