package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/fenceorders/pkg/runtime"
)

func TestStore(t *testing.T) {
	assert.NoError(t, Store("noop", nil))

	cause := errors.New("connection reset")
	err := Store("create order", cause)

	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "create order", storeErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestStore_KeepsDomainErrors(t *testing.T) {
	domain := []error{
		Validation("userId", "UserId must be greater than zero."),
		Reference("managerId", "Manager with User ID 9 does not exist."),
		Forbidden("not your order"),
		NotFound("order", 3),
		Conflict("Username is already taken"),
		&UnsupportedTypeError{Type: "door"},
		&AuthenticationError{Message: "Invalid email or password"},
		fmt.Errorf("wrapped: %w", ErrUnauthenticated),
	}
	for _, err := range domain {
		assert.Same(t, err, Store("op", err), "%T", err)
	}
}

func TestStore_RangeViolationsAreValidation(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "rounded price hits check", code: "23514"},
		{name: "total overflows numeric", code: "22003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := runtime.Translate("INSERT INTO products ...", &pgconn.PgError{Code: tt.code, ConstraintName: "products_price_check"})
			err := Store("create product", cause)

			var validation *ValidationError
			require.True(t, errors.As(err, &validation), "got %v", err)
			assert.Equal(t, msgOutOfRange, validation.Message)
		})
	}

	dup := runtime.Translate("INSERT INTO users ...", &pgconn.PgError{Code: "23505"})
	var storeErr *StoreError
	assert.True(t, errors.As(Store("create user", dup), &storeErr), "unique violations stay store errors")
}

func TestAuthenticationErrorMatchesSentinel(t *testing.T) {
	err := &AuthenticationError{Message: "Invalid email or password"}
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Invalid email or password", err.Error())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "order 3 not found", NotFound("order", 3).Error())
	assert.Equal(t, "forbidden", (&ForbiddenError{}).Error())
	assert.Equal(t, `unsupported product type "door"`, (&UnsupportedTypeError{Type: "door"}).Error())
	assert.Equal(t, "text is required", Validation("text", "text is required").Error())
}
