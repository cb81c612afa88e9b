// Package service implements the resource operations. Each operation runs in
// its own transaction, applies the authorization policy and returns errors
// from the apperr taxonomy.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"go.uber.org/zap"
)

// Services bundles every resource service over one database.
type Services struct {
	Auth      *AuthService
	Users     *UserService
	Clients   *ClientService
	Managers  *ManagerService
	Orders    *OrderService
	Products  *ProductService
	Jobs      *JobService
	Documents *DocumentService
	Comments  *CommentService
}

// New wires all services.
func New(db *runtime.DB, hasher *auth.Hasher, tokens *auth.Tokens, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	users := &UserService{db: db, hasher: hasher, log: logger.Named("users")}
	return &Services{
		Auth:      &AuthService{db: db, users: users, hasher: hasher, tokens: tokens, log: logger.Named("auth")},
		Users:     users,
		Clients:   &ClientService{db: db, log: logger.Named("clients")},
		Managers:  &ManagerService{db: db},
		Orders:    &OrderService{db: db, log: logger.Named("orders")},
		Products:  &ProductService{db: db, log: logger.Named("products")},
		Jobs:      &JobService{db: db, log: logger.Named("jobs")},
		Documents: &DocumentService{db: db, log: logger.Named("documents")},
		Comments:  &CommentService{db: db, log: logger.Named("comments")},
	}
}

// findByID loads one T by primary key, mapping a missing row to
// apperr.NotFound(resource, id).
func findByID[T any](ctx context.Context, q runtime.Querier, resource string, id int64) (T, error) {
	row, err := builder.Select[T](q).Where(builder.Eq("id", id)).First(ctx)
	if runtime.IsNotFound(err) {
		return row, apperr.NotFound(resource, id)
	}
	return row, err
}

// exists reports whether any T has column = value.
func exists[T any](ctx context.Context, q runtime.Querier, column string, value any) (bool, error) {
	return builder.Select[T](q).Where(builder.Eq(column, value)).Exists(ctx)
}

// deleteByID removes one T by primary key. A missing row is NotFound and a
// restricting reference becomes a ConflictError with message.
func deleteByID[T any](ctx context.Context, q runtime.Querier, resource string, id int64, conflict string) error {
	n, err := builder.Delete[T](q).Where(builder.Eq("id", id)).Exec(ctx)
	if errors.Is(err, runtime.ErrForeignKeyViolation) {
		return apperr.Conflict(conflict)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}

// missingIDs returns the ids with no T row, in input order.
func missingIDs[T any](ctx context.Context, q runtime.Querier, ids []int64, id func(T) int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := builder.Select[T](q).Where(builder.In("id", ids)).All(ctx)
	if err != nil {
		return nil, err
	}
	found := make(map[int64]bool, len(rows))
	for _, r := range rows {
		found[id(r)] = true
	}
	var missing []int64
	for _, v := range ids {
		if !found[v] {
			missing = append(missing, v)
		}
	}
	return missing, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// maxAmount is the largest value a NUMERIC(10, 2) column holds.
const maxAmount = 99999999.99

// checkAmount rejects money values the store cannot keep exactly: more than
// two decimal places or more than maxAmount.
func checkAmount(field, label string, v float64) error {
	if v > maxAmount {
		return apperr.Validation(field, fmt.Sprintf("%s cannot exceed %.2f.", label, maxAmount))
	}
	digits := strconv.FormatFloat(v, 'f', -1, 64)
	if _, frac, ok := strings.Cut(digits, "."); ok && len(frac) > 2 {
		return apperr.Validation(field, label+" cannot have more than two decimal places.")
	}
	return nil
}

// isNotFound reports whether err is an *apperr.NotFoundError.
func isNotFound(err error) bool {
	var notFound *apperr.NotFoundError
	return errors.As(err, &notFound)
}
