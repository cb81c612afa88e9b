// Package policy decides what an authenticated principal may see and change.
// Every check returns nil or an *apperr.ForbiddenError.
package policy

import (
	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
)

// Scope restricts a listing to rows whose Column equals UserID. The zero
// Scope is unrestricted.
type Scope struct {
	Column string
	UserID int64
}

// Unrestricted reports whether the scope admits every row.
func (s Scope) Unrestricted() bool { return s.Column == "" }

// OrderScope returns the orders p may see: admins all, managers those
// assigned to them, clients their own.
func OrderScope(p auth.Principal) Scope {
	switch p.Role {
	case auth.RoleAdmin:
		return Scope{}
	case auth.RoleManager:
		return Scope{Column: "manager_id", UserID: p.UserID}
	default:
		return Scope{Column: "user_id", UserID: p.UserID}
	}
}

// CanViewOrder applies OrderScope to a single order.
func CanViewOrder(p auth.Principal, order models.Order) error {
	switch p.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleManager:
		if order.ManagerID != nil && *order.ManagerID == p.UserID {
			return nil
		}
		return apperr.Forbidden("order is not assigned to you")
	default:
		if order.UserID == p.UserID {
			return nil
		}
		return apperr.Forbidden("order belongs to another user")
	}
}

// CanCreateOrder lets staff create orders for anyone and clients only for
// themselves.
func CanCreateOrder(p auth.Principal, ownerID int64) error {
	if p.Is(auth.RoleAdmin, auth.RoleManager) || ownerID == p.UserID {
		return nil
	}
	return apperr.Forbidden("clients may only create their own orders")
}

// CanUpdateOrder allows admins and the manager assigned to the order.
func CanUpdateOrder(p auth.Principal, order models.Order) error {
	if p.Role == auth.RoleAdmin {
		return nil
	}
	if p.Role == auth.RoleManager && order.ManagerID != nil && *order.ManagerID == p.UserID {
		return nil
	}
	return apperr.Forbidden("only an admin or the assigned manager may update this order")
}

func CanDeleteOrder(p auth.Principal) error {
	return requireRole(p, "delete orders", auth.RoleAdmin, auth.RoleManager)
}

// CanEditCatalog covers creating and updating products and jobs.
func CanEditCatalog(p auth.Principal) error {
	return requireRole(p, "edit the catalogue", auth.RoleAdmin, auth.RoleManager)
}

// CanDeleteCatalog covers deleting products and jobs.
func CanDeleteCatalog(p auth.Principal) error {
	return requireRole(p, "delete catalogue entries", auth.RoleAdmin)
}

func CanDeleteDocument(p auth.Principal) error {
	return requireRole(p, "delete documents", auth.RoleAdmin, auth.RoleManager)
}

// CanAuthorComment lets staff write comments on behalf of any user and
// everyone else only as themselves.
func CanAuthorComment(p auth.Principal, userID int64) error {
	if p.Is(auth.RoleAdmin, auth.RoleManager) || userID == p.UserID {
		return nil
	}
	return apperr.Forbidden("comments may only be written as yourself")
}

func CanListUsers(p auth.Principal) error {
	return requireRole(p, "list users", auth.RoleAdmin, auth.RoleManager)
}

// CanViewUser allows self, admins and managers.
func CanViewUser(p auth.Principal, userID int64) error {
	if p.UserID == userID || p.Is(auth.RoleAdmin, auth.RoleManager) {
		return nil
	}
	return apperr.Forbidden("cannot view another user")
}

func CanCreateUser(p auth.Principal) error {
	return requireRole(p, "create users", auth.RoleAdmin)
}

// CanUpdateUsername allows the owner and admins.
func CanUpdateUsername(p auth.Principal, userID int64) error {
	if p.UserID == userID || p.Role == auth.RoleAdmin {
		return nil
	}
	return apperr.Forbidden("cannot change another user's username")
}

// CanUpdatePassword allows only the owner; the current password is checked
// by the caller.
func CanUpdatePassword(p auth.Principal, userID int64) error {
	if p.UserID == userID {
		return nil
	}
	return apperr.Forbidden("cannot change another user's password")
}

func CanSetRole(p auth.Principal) error {
	return requireRole(p, "change roles", auth.RoleAdmin)
}

func CanDeleteUser(p auth.Principal) error {
	return requireRole(p, "delete users", auth.RoleAdmin)
}

func requireRole(p auth.Principal, action string, roles ...auth.Role) error {
	if p.Is(roles...) {
		return nil
	}
	return apperr.Forbidden("role " + p.Role.String() + " may not " + action)
}
