package service

import (
	"context"
	"strings"
	"time"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"go.uber.org/zap"
)

const msgBadCredentials = "Invalid email or password"

type RegisterInput struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
	UserID     int64     `json:"userId"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
}

// AuthService registers and logs in users.
type AuthService struct {
	db     *runtime.DB
	users  *UserService
	hasher *auth.Hasher
	tokens *auth.Tokens
	log    *zap.Logger
}

func (s *AuthService) issue(u models.User) (AuthResponse, error) {
	role, err := auth.ParseRole(u.Role)
	if err != nil {
		return AuthResponse{}, err
	}
	token, expires, err := s.tokens.Issue(u.ID, u.Username, u.Email, role)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:      token,
		Expiration: expires,
		UserID:     u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       role.String(),
	}, nil
}

// Register creates a client account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	create := CreateUserInput{Username: in.Username, Email: in.Email, Password: in.Password}
	role, err := validateNewUser(&create)
	if err != nil {
		return AuthResponse{}, err
	}

	var user models.User
	err = s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		user, err = s.users.createUser(ctx, tx, create, role)
		return err
	})
	if err != nil {
		return AuthResponse{}, apperr.Store("register", err)
	}

	resp, err := s.issue(user)
	if err != nil {
		return AuthResponse{}, apperr.Store("register", err)
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return resp, nil
}

// Login verifies credentials. Every mismatch gets the same message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	user, err := builder.Select[models.User](s.db).
		Where(builder.Eq("email", normalizeEmail(in.Email))).
		First(ctx)
	if runtime.IsNotFound(err) {
		return AuthResponse{}, &apperr.AuthenticationError{Message: msgBadCredentials}
	}
	if err != nil {
		return AuthResponse{}, apperr.Store("login", err)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.log.Debug("login rejected", zap.Int64("user_id", user.ID))
		return AuthResponse{}, &apperr.AuthenticationError{Message: msgBadCredentials}
	}

	resp, err := s.issue(user)
	if err != nil {
		return AuthResponse{}, apperr.Store("login", err)
	}
	return resp, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, p auth.Principal) (UserResponse, error) {
	u, err := findByID[models.User](ctx, s.db, "user", p.UserID)
	if err != nil {
		return UserResponse{}, apperr.Store("me", err)
	}
	return userResponse(u), nil
}

type ClientInput struct {
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

type ClientResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"userId"`
	FullName    string `json:"fullName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

type ClientService struct {
	db  *runtime.DB
	log *zap.Logger
}

// Upsert creates or updates the caller's own client profile. A blank full
// name falls back to the username. Only clients have a profile; staff rows
// live in their own side tables.
func (s *ClientService) Upsert(ctx context.Context, p auth.Principal, in ClientInput) (ClientResponse, error) {
	if p.Role != auth.RoleClient {
		return ClientResponse{}, apperr.Forbidden("only clients have a client profile")
	}
	var client models.Client
	err := s.db.WithTx(ctx, func(tx *runtime.Tx) error {
		user, err := findByID[models.User](ctx, tx, "user", p.UserID)
		if err != nil {
			return err
		}
		fullName := strings.TrimSpace(in.FullName)
		if fullName == "" {
			fullName = user.Username
		}

		existing, err := builder.Select[models.Client](tx).
			Where(builder.Eq("user_id", user.ID)).
			ForUpdate().
			First(ctx)
		if runtime.IsNotFound(err) {
			client, err = builder.Insert[models.Client](tx).Values(models.Client{
				UserID:      user.ID,
				FullName:    fullName,
				Address:     in.Address,
				PhoneNumber: in.PhoneNumber,
			}).One(ctx)
			return err
		}
		if err != nil {
			return err
		}

		rows, err := builder.Update[models.Client](tx).
			Set("full_name", fullName).
			Set("address", in.Address).
			Set("phone_number", in.PhoneNumber).
			Set("updated_at", time.Now()).
			Where(builder.Eq("id", existing.ID)).
			ExecReturning(ctx)
		if err != nil {
			return err
		}
		client = rows[0]
		return nil
	})
	if err != nil {
		return ClientResponse{}, apperr.Store("upsert client", err)
	}

	s.log.Info("client profile saved", zap.Int64("client_id", client.ID), zap.Int64("user_id", client.UserID))
	return ClientResponse{
		ID:          client.ID,
		UserID:      client.UserID,
		FullName:    client.FullName,
		Address:     client.Address,
		PhoneNumber: client.PhoneNumber,
	}, nil
}

type ManagerResponse struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ManagerService lists the users that can be assigned to orders.
type ManagerService struct {
	db *runtime.DB
}

func managerResponse(m models.Manager) ManagerResponse {
	resp := ManagerResponse{ID: m.ID, UserID: m.UserID}
	if m.User != nil {
		resp.Username = m.User.Username
		resp.Email = m.User.Email
	}
	return resp
}

func (s *ManagerService) List(ctx context.Context) ([]ManagerResponse, error) {
	managers, err := builder.Select[models.Manager](s.db).OrderByAsc("id").Preload("User").All(ctx)
	if err != nil {
		return nil, apperr.Store("list managers", err)
	}
	resp := make([]ManagerResponse, len(managers))
	for i, m := range managers {
		resp[i] = managerResponse(m)
	}
	return resp, nil
}

// Get looks a manager up by the managers table id.
func (s *ManagerService) Get(ctx context.Context, id int64) (ManagerResponse, error) {
	m, err := builder.Select[models.Manager](s.db).Where(builder.Eq("id", id)).Preload("User").First(ctx)
	if runtime.IsNotFound(err) {
		return ManagerResponse{}, apperr.NotFound("manager", id)
	}
	if err != nil {
		return ManagerResponse{}, apperr.Store("get manager", err)
	}
	return managerResponse(m), nil
}
