package policy

import (
	"errors"
	"testing"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/stretchr/testify/assert"
)

var (
	admin   = auth.Principal{UserID: 1, Role: auth.RoleAdmin}
	manager = auth.Principal{UserID: 2, Role: auth.RoleManager}
	clientA = auth.Principal{UserID: 3, Role: auth.RoleClient}
	clientB = auth.Principal{UserID: 4, Role: auth.RoleClient}
)

func ptr(v int64) *int64 { return &v }

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	var forbidden *apperr.ForbiddenError
	assert.True(t, errors.As(err, &forbidden), "expected ForbiddenError, got %v", err)
}

func TestOrderScope(t *testing.T) {
	assert.True(t, OrderScope(admin).Unrestricted())
	assert.Equal(t, Scope{Column: "manager_id", UserID: 2}, OrderScope(manager))
	assert.Equal(t, Scope{Column: "user_id", UserID: 3}, OrderScope(clientA))
}

func TestCanViewOrder(t *testing.T) {
	own := models.Order{UserID: 3}
	assigned := models.Order{UserID: 4, ManagerID: ptr(2)}
	other := models.Order{UserID: 4, ManagerID: ptr(9)}

	for _, o := range []models.Order{own, assigned, other} {
		assert.NoError(t, CanViewOrder(admin, o))
	}

	assert.NoError(t, CanViewOrder(clientA, own))
	assertForbidden(t, CanViewOrder(clientB, own))
	assertForbidden(t, CanViewOrder(clientA, assigned))

	assert.NoError(t, CanViewOrder(manager, assigned))
	assertForbidden(t, CanViewOrder(manager, other))
	assertForbidden(t, CanViewOrder(manager, own))
}

func TestOrderMutations(t *testing.T) {
	assert.NoError(t, CanCreateOrder(clientA, 3))
	assertForbidden(t, CanCreateOrder(clientA, 4))
	assert.NoError(t, CanCreateOrder(manager, 4))
	assert.NoError(t, CanCreateOrder(admin, 4))

	assigned := models.Order{UserID: 3, ManagerID: ptr(2)}
	unassigned := models.Order{UserID: 3}
	assert.NoError(t, CanUpdateOrder(admin, unassigned))
	assert.NoError(t, CanUpdateOrder(manager, assigned))
	assertForbidden(t, CanUpdateOrder(manager, unassigned))
	assertForbidden(t, CanUpdateOrder(clientA, assigned))

	assert.NoError(t, CanDeleteOrder(admin))
	assert.NoError(t, CanDeleteOrder(manager))
	assertForbidden(t, CanDeleteOrder(clientA))
}

func TestCatalogAndDocuments(t *testing.T) {
	assert.NoError(t, CanEditCatalog(admin))
	assert.NoError(t, CanEditCatalog(manager))
	assertForbidden(t, CanEditCatalog(clientA))

	assert.NoError(t, CanDeleteCatalog(admin))
	assertForbidden(t, CanDeleteCatalog(manager))
	assertForbidden(t, CanDeleteCatalog(clientA))

	assert.NoError(t, CanDeleteDocument(manager))
	assertForbidden(t, CanDeleteDocument(clientA))
}

func TestComments(t *testing.T) {
	assert.NoError(t, CanAuthorComment(clientA, 3))
	assertForbidden(t, CanAuthorComment(clientA, 4))
	assert.NoError(t, CanAuthorComment(manager, 4))
}

func TestUsers(t *testing.T) {
	assert.NoError(t, CanListUsers(manager))
	assertForbidden(t, CanListUsers(clientA))

	assert.NoError(t, CanViewUser(clientA, 3))
	assertForbidden(t, CanViewUser(clientA, 4))
	assert.NoError(t, CanViewUser(manager, 4))

	assert.NoError(t, CanCreateUser(admin))
	assertForbidden(t, CanCreateUser(manager))

	assert.NoError(t, CanUpdateUsername(clientA, 3))
	assert.NoError(t, CanUpdateUsername(admin, 3))
	assertForbidden(t, CanUpdateUsername(manager, 3))

	assert.NoError(t, CanUpdatePassword(clientA, 3))
	assertForbidden(t, CanUpdatePassword(admin, 3))

	assert.NoError(t, CanSetRole(admin))
	assertForbidden(t, CanSetRole(manager))
	assert.NoError(t, CanDeleteUser(admin))
	assertForbidden(t, CanDeleteUser(clientA))
}
