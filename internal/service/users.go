package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/policy"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

const (
	msgEmailTaken    = "User with this email already exists"
	msgUsernameTaken = "Username is already taken"
)

// CreateUserInput creates an account. An empty Role means client.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// PasswordChange replaces the caller's own password.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UserService struct {
	db     *runtime.DB
	hasher *auth.Hasher
	log    *zap.Logger
}

func userResponse(u models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password", fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength))
	}
	return nil
}

// validateNewUser normalizes in and returns the requested role.
func validateNewUser(in *CreateUserInput) (auth.Role, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Username == "" {
		return "", apperr.Validation("username", "Username is required.")
	}
	if in.Email == "" {
		return "", apperr.Validation("email", "Email is required.")
	}
	if err := validatePassword(in.Password); err != nil {
		return "", err
	}
	if in.Role == "" {
		return auth.RoleClient, nil
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return "", apperr.Validation("role", fmt.Sprintf("Invalid role %q.", in.Role))
	}
	return role, nil
}

// createUser inserts a user with role and its side row inside tx.
func (s *UserService) createUser(ctx context.Context, tx *runtime.Tx, in CreateUserInput, role auth.Role) (models.User, error) {
	taken, err := exists[models.User](ctx, tx, "email", in.Email)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, apperr.Conflict(msgEmailTaken)
	}
	taken, err = exists[models.User](ctx, tx, "username", in.Username)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, apperr.Conflict(msgUsernameTaken)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := builder.Insert[models.User](tx).Values(models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role.String(),
	}).One(ctx)
	if errors.Is(err, runtime.ErrDuplicateKey) {
		return models.User{}, apperr.Conflict(msgUsernameTaken)
	}
	if err != nil {
		return models.User{}, err
	}

	if err := applyRoleTransition(ctx, tx, user, roleTransition("", role)); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, p auth.Principal) ([]UserResponse, error) {
	if err := policy.CanListUsers(p); err != nil {
		return nil, err
	}
	users, err := builder.Select[models.User](s.db).OrderByAsc("id").All(ctx)
	if err != nil {
		return nil, apperr.Store("list users", err)
	}
	resp := make([]UserResponse, len(users))
	for i, u := range users {
		resp[i] = userResponse(u)
	}
	return resp, nil
}

func (s *UserService) Get(ctx context.Context, p auth.Principal, id int64) (UserResponse, error) {
	if err := policy.CanViewUser(p, id); err != nil {
		return UserResponse{}, err
	}
	u, err := findByID[models.User](ctx, s.db, "user", id)
	if err != nil {
		return UserResponse{}, apperr.Store("get user", err)
	}
	return userResponse(u), nil
}

// Create adds an account on behalf of an admin.
func (s *UserService) Create(ctx context.Context, p auth.Principal, in CreateUserInput) (UserResponse, error) {
	if err := policy.CanCreateUser(p); err != nil {
		return UserResponse{}, err
	}
	role, err := validateNewUser(&in)
	if err != nil {
		return UserResponse{}, err
	}

	var user models.User
	err = s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		user, err = s.createUser(ctx, tx, in, role)
		return err
	})
	if err != nil {
		return UserResponse{}, apperr.Store("create user", err)
	}

	s.log.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", user.Role), zap.Int64("by", p.UserID))
	return userResponse(user), nil
}

// UpdateUsername renames a user; usernames stay unique.
func (s *UserService) UpdateUsername(ctx context.Context, p auth.Principal, id int64, username string) (UserResponse, error) {
	if err := policy.CanUpdateUsername(p, id); err != nil {
		return UserResponse{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return UserResponse{}, apperr.Validation("username", "Username is required.")
	}

	var updated models.User
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		taken, err := builder.Select[models.User](tx).
			Where(builder.Eq("username", username)).
			And(builder.NotEq("id", id)).
			Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict(msgUsernameTaken)
		}

		rows, err := builder.Update[models.User](tx).
			Set("username", username).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if errors.Is(err, runtime.ErrDuplicateKey) {
			return apperr.Conflict(msgUsernameTaken)
		}
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperr.NotFound("user", id)
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		return UserResponse{}, apperr.Store("update username", err)
	}
	return userResponse(updated), nil
}

// UpdatePassword changes the caller's own password after verifying the
// current one.
func (s *UserService) UpdatePassword(ctx context.Context, p auth.Principal, id int64, in PasswordChange) error {
	if err := policy.CanUpdatePassword(p, id); err != nil {
		return err
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return apperr.Validation("confirmPassword", "Passwords do not match.")
	}

	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		user, err := findByID[models.User](ctx, tx, "user", id)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
			return apperr.Validation("currentPassword", "Current password is incorrect.")
		}
		hash, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return err
		}
		_, err = builder.Update[models.User](tx).
			Set("password_hash", hash).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return apperr.Store("update password", err)
	}
	s.log.Info("password changed", zap.Int64("user_id", id))
	return nil
}

// SetRole changes a user's role and syncs the side tables in the same
// transaction. role accepts canonical names and the legacy numeric forms.
func (s *UserService) SetRole(ctx context.Context, p auth.Principal, id int64, role string) (UserResponse, error) {
	if err := policy.CanSetRole(p); err != nil {
		return UserResponse{}, err
	}
	newRole, err := auth.ParseRole(role)
	if err != nil {
		return UserResponse{}, apperr.Validation("role", fmt.Sprintf("Invalid role %q.", role))
	}

	var updated models.User
	err = s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		updated, err = s.setRole(ctx, tx, id, newRole)
		return err
	})
	if err != nil {
		return UserResponse{}, apperr.Store("set role", err)
	}

	s.log.Info("role changed", zap.Int64("user_id", id), zap.String("role", newRole.String()), zap.Int64("by", p.UserID))
	return userResponse(updated), nil
}

func (s *UserService) setRole(ctx context.Context, tx *runtime.Tx, id int64, newRole auth.Role) (models.User, error) {
	user, err := builder.Select[models.User](tx).Where(builder.Eq("id", id)).ForUpdate().First(ctx)
	if runtime.IsNotFound(err) {
		return user, apperr.NotFound("user", id)
	}
	if err != nil {
		return user, err
	}
	oldRole, _ := auth.ParseRole(user.Role)

	if oldRole != newRole {
		rows, err := builder.Update[models.User](tx).
			Set("role", newRole.String()).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if err != nil {
			return user, err
		}
		user = rows[0]
	}

	return user, applyRoleTransition(ctx, tx, user, roleTransition(oldRole, newRole))
}

// Delete removes a user. Users still owning orders or comments are kept
// and the call fails with a ConflictError.
func (s *UserService) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := policy.CanDeleteUser(p); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		return deleteByID[models.User](ctx, tx, "user", id,
			fmt.Sprintf("User %d still has orders or comments.", id))
	})
	if err != nil {
		return apperr.Store("delete user", err)
	}
	s.log.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", p.UserID))
	return nil
}

// Bootstrap creates in as an admin, or promotes the existing account with
// in.Email to admin. It bypasses the policy and is meant for the CLI.
func (s *UserService) Bootstrap(ctx context.Context, in CreateUserInput) (UserResponse, bool, error) {
	in.Role = auth.RoleAdmin.String()
	if _, err := validateNewUser(&in); err != nil {
		return UserResponse{}, false, err
	}

	var (
		user    models.User
		created bool
	)
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		existing, err := builder.Select[models.User](tx).Where(builder.Eq("email", in.Email)).First(ctx)
		if runtime.IsNotFound(err) {
			user, err = s.createUser(ctx, tx, in, auth.RoleAdmin)
			created = err == nil
			return err
		}
		if err != nil {
			return err
		}
		user, err = s.setRole(ctx, tx, existing.ID, auth.RoleAdmin)
		return err
	})
	if err != nil {
		return UserResponse{}, false, apperr.Store("bootstrap admin", err)
	}
	return userResponse(user), created, nil
}
