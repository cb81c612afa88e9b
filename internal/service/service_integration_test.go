//go:build integration

package service_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/marshallshelly/fenceorders/internal/apperr"
	"github.com/marshallshelly/fenceorders/internal/auth"
	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/service"
	"github.com/marshallshelly/fenceorders/internal/testdb"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "integration-secret-integration-secret"

type fixture struct {
	db     *runtime.DB
	svc    *service.Services
	tokens *auth.Tokens
	admin  auth.Principal
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Start(t)

	tokens, err := auth.NewTokens(auth.TokenConfig{Secret: secret, Issuer: "fenceorders", Audience: "fenceorders-api"})
	require.NoError(t, err)
	svc := service.New(db, auth.NewHasher(4), tokens, zap.NewNop())

	admin, created, err := svc.Users.Bootstrap(context.Background(), service.CreateUserInput{
		Username: "root",
		Email:    "root@x.com",
		Password: "rootpass",
	})
	require.NoError(t, err)
	require.True(t, created)

	return &fixture{
		db:     db,
		svc:    svc,
		tokens: tokens,
		admin:  auth.Principal{UserID: admin.ID, Username: admin.Username, Email: admin.Email, Role: auth.RoleAdmin},
	}
}

func (f *fixture) register(t *testing.T, username, email string) auth.Principal {
	t.Helper()
	resp, err := f.svc.Auth.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    email,
		Password: "secret1",
	})
	require.NoError(t, err)
	p, err := f.tokens.Parse(resp.Token)
	require.NoError(t, err)
	return p
}

func (f *fixture) promote(t *testing.T, p auth.Principal, role auth.Role) auth.Principal {
	t.Helper()
	_, err := f.svc.Users.SetRole(context.Background(), f.admin, p.UserID, role.String())
	require.NoError(t, err)
	p.Role = role
	return p
}

func countRows[T any](t *testing.T, db *runtime.DB, userID int64) int64 {
	t.Helper()
	n, err := builder.Select[T](db).Where(builder.Eq("user_id", userID)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestIntegration_ClientOrderVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	alice := f.register(t, "alice", "a@x.com")
	assert.Equal(t, auth.RoleClient, alice.Role)
	bob := f.register(t, "bob", "b@x.com")

	order, err := f.svc.Orders.Create(ctx, alice, service.OrderInput{UserID: alice.UserID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Zero(t, order.TotalPrice)
	assert.Empty(t, order.OrderProducts)

	got, err := f.svc.Orders.Get(ctx, alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.Orders.Get(ctx, bob, order.ID)
	var forbidden *apperr.ForbiddenError
	assert.True(t, errors.As(err, &forbidden), "got %v", err)

	_, err = f.svc.Orders.Get(ctx, bob, order.ID+1000)
	var notFound *apperr.NotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)

	asAdmin, err := f.svc.Orders.Get(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", asAdmin.UserEmail)
}

func TestIntegration_LoginAndLegacyErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com")

	resp, err := f.svc.Auth.Login(ctx, service.LoginInput{Email: "A@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "client", resp.Role)

	_, err = f.svc.Auth.Login(ctx, service.LoginInput{Email: "a@x.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.EqualError(t, err, "Invalid email or password")

	_, err = f.svc.Auth.Register(ctx, service.RegisterInput{Username: "other", Email: "a@x.com", Password: "secret1"})
	assert.EqualError(t, err, "User with this email already exists")
	_, err = f.svc.Auth.Register(ctx, service.RegisterInput{Username: "alice", Email: "c@x.com", Password: "secret1"})
	assert.EqualError(t, err, "Username is already taken")
}

func TestIntegration_RoleScopedListing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	clientA := f.register(t, "clienta", "ca@x.com")
	clientB := f.register(t, "clientb", "cb@x.com")
	manager := f.promote(t, f.register(t, "managerb", "mb@x.com"), auth.RoleManager)

	own, err := f.svc.Orders.Create(ctx, clientA, service.OrderInput{UserID: clientA.UserID})
	require.NoError(t, err)
	assigned, err := f.svc.Orders.Create(ctx, f.admin, service.OrderInput{UserID: clientB.UserID, ManagerID: &manager.UserID})
	require.NoError(t, err)
	require.NotNil(t, assigned.ManagerName)
	assert.Equal(t, "managerb", *assigned.ManagerName)
	_, err = f.svc.Orders.Create(ctx, f.admin, service.OrderInput{UserID: clientB.UserID})
	require.NoError(t, err)

	ids := func(orders []service.OrderResponse) []int64 {
		out := make([]int64, len(orders))
		for i, o := range orders {
			out[i] = o.ID
		}
		return out
	}

	list, err := f.svc.Orders.List(ctx, clientA)
	require.NoError(t, err)
	assert.Equal(t, []int64{own.ID}, ids(list))

	list, err = f.svc.Orders.List(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, []int64{assigned.ID}, ids(list))

	list, err = f.svc.Orders.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Greater(t, list[0].ID, list[2].ID, "newest first")
}

func TestIntegration_ManagerReference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "client", "c@x.com")

	// A client's user id is not a manager's user id.
	_, err := f.svc.Orders.Create(ctx, f.admin, service.OrderInput{UserID: client.UserID, ManagerID: &client.UserID})
	var reference *apperr.ReferenceError
	require.True(t, errors.As(err, &reference), "got %v", err)
	assert.Equal(t, "managerId", reference.Field)
	assert.Equal(t, "Manager with User ID "+itoa(client.UserID)+" does not exist.", reference.Message)
}

func TestIntegration_SetRoleIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.register(t, "carol", "carol@x.com")

	assert.EqualValues(t, 1, countRows[models.Client](t, f.db, user.UserID))

	for range 2 {
		_, err := f.svc.Users.SetRole(ctx, f.admin, user.UserID, "Manager")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, countRows[models.Manager](t, f.db, user.UserID))
	assert.EqualValues(t, 0, countRows[models.Client](t, f.db, user.UserID))

	_, err := f.svc.Users.SetRole(ctx, f.admin, user.UserID, "1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, countRows[models.Manager](t, f.db, user.UserID))
	assert.EqualValues(t, 1, countRows[models.Administrator](t, f.db, user.UserID))

	_, err = f.svc.Users.SetRole(ctx, f.admin, user.UserID, "client")
	require.NoError(t, err)
	client, err := builder.Select[models.Client](f.db).Where(builder.Eq("user_id", user.UserID)).First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "carol", client.FullName)
	assert.Equal(t, "", client.Address)
}

func TestIntegration_TotalPriceNotRecomputed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "dave", "d@x.com")

	product, err := f.svc.Products.Create(ctx, f.admin, service.ProductInput{Name: "Panel", Price: 100, Type: "fence"})
	require.NoError(t, err)
	job, err := f.svc.Jobs.Create(ctx, f.admin, service.JobInput{Name: "Install", Price: 50})
	require.NoError(t, err)

	order, err := f.svc.Orders.Create(ctx, f.admin, service.OrderInput{
		UserID:        client.UserID,
		TotalPrice:    1,
		OrderProducts: []service.OrderProductInput{{ProductID: product.ID, Quantity: 3}},
		OrderJobs:     []service.OrderJobInput{{JobID: job.ID, Price: 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, order.TotalPrice)

	got, err := f.svc.Orders.Get(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.TotalPrice)
	assert.Equal(t, []service.OrderProductResponse{{ProductID: product.ID, Quantity: 3}}, got.OrderProducts)
}

func TestIntegration_JobPriceCapturedAndLinesReplaced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "erin", "e@x.com")

	job, err := f.svc.Jobs.Create(ctx, f.admin, service.JobInput{Name: "Install", Price: 50})
	require.NoError(t, err)
	product, err := f.svc.Products.Create(ctx, f.admin, service.ProductInput{Name: "Post", Price: 10, Type: "poles"})
	require.NoError(t, err)

	order, err := f.svc.Orders.Create(ctx, f.admin, service.OrderInput{
		UserID:        client.UserID,
		OrderProducts: []service.OrderProductInput{{ProductID: product.ID}},
		OrderJobs:     []service.OrderJobInput{{JobID: job.ID, Price: 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, order.OrderProducts[0].Quantity)

	_, err = f.svc.Orders.Update(ctx, f.admin, order.ID, service.OrderInput{
		Status:    models.StatusProcessing,
		OrderJobs: []service.OrderJobInput{{JobID: job.ID, Price: 50, Done: true}},
	})
	require.NoError(t, err)

	_, err = f.svc.Jobs.Update(ctx, f.admin, job.ID, service.JobInput{Name: "Install", Price: 75})
	require.NoError(t, err)

	got, err := f.svc.Orders.Get(ctx, f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Empty(t, got.OrderProducts, "omitted lines are removed")
	require.Len(t, got.OrderJobs, 1)
	assert.True(t, got.OrderJobs[0].Done)
	assert.Equal(t, 50.0, got.OrderJobs[0].Price)
}

func TestIntegration_OrderUpdateRights(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "fred", "f@x.com")
	assignedManager := f.promote(t, f.register(t, "m1", "m1@x.com"), auth.RoleManager)
	otherManager := f.promote(t, f.register(t, "m2", "m2@x.com"), auth.RoleManager)

	order, err := f.svc.Orders.Create(ctx, client, service.OrderInput{UserID: client.UserID})
	require.NoError(t, err)

	var forbidden *apperr.ForbiddenError
	_, err = f.svc.Orders.Update(ctx, client, order.ID, service.OrderInput{})
	assert.True(t, errors.As(err, &forbidden), "client cannot update: %v", err)

	_, err = f.svc.Orders.Update(ctx, f.admin, order.ID, service.OrderInput{ManagerID: &assignedManager.UserID})
	require.NoError(t, err)

	_, err = f.svc.Orders.Update(ctx, otherManager, order.ID, service.OrderInput{ManagerID: &assignedManager.UserID})
	assert.True(t, errors.As(err, &forbidden), "unassigned manager cannot update: %v", err)

	updated, err := f.svc.Orders.Update(ctx, assignedManager, order.ID, service.OrderInput{
		ManagerID: &assignedManager.UserID,
		Status:    models.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, client.UserID, updated.UserID, "owner is immutable")
}

func TestIntegration_ProductLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "gina", "g@x.com")

	_, err := f.svc.Products.Create(ctx, f.admin, service.ProductInput{Name: "Free", Price: 0, Type: "fence"})
	assert.EqualError(t, err, "price must be > 0")

	_, err = f.svc.Products.Create(ctx, f.admin, service.ProductInput{Name: "Dust", Price: 0.004, Type: "fence"})
	var validation *apperr.ValidationError
	assert.True(t, errors.As(err, &validation), "sub-cent price: %v", err)

	_, err = f.svc.Orders.Create(ctx, f.admin, service.OrderInput{UserID: client.UserID, TotalPrice: 1e9})
	assert.True(t, errors.As(err, &validation), "overflowing total: %v", err)

	fence, err := f.svc.Products.Create(ctx, f.admin, service.ProductInput{
		Name:     "Cheap",
		Price:    0.01,
		Type:     "fence",
		FillType: ptr("mesh"),
	})
	require.NoError(t, err)

	updated, err := f.svc.Products.Update(ctx, f.admin, fence.ID, service.ProductInput{
		Name:     "Cheap",
		Price:    0.02,
		Type:     "gate",
		GateType: ptr("push"),
	})
	require.NoError(t, err)
	assert.Equal(t, "fence", updated.Type)
	assert.Equal(t, "mesh", *updated.FillType)
	assert.Nil(t, updated.GateType)

	_, err = f.svc.Orders.Create(ctx, f.admin, service.OrderInput{
		UserID:        client.UserID,
		OrderProducts: []service.OrderProductInput{{ProductID: fence.ID}},
	})
	require.NoError(t, err)

	err = f.svc.Products.Delete(ctx, f.admin, fence.ID)
	var conflict *apperr.ConflictError
	assert.True(t, errors.As(err, &conflict), "referenced product: %v", err)

	err = f.svc.Products.Delete(ctx, f.admin, fence.ID+1000)
	var notFound *apperr.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestIntegration_CommentsAndCascade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "hank", "h@x.com")

	order, err := f.svc.Orders.Create(ctx, client, service.OrderInput{UserID: client.UserID})
	require.NoError(t, err)
	doc, err := f.svc.Documents.Create(ctx, client, service.DocumentInput{OrderID: order.ID, Name: "plan", FilePath: "/files/plan.pdf"})
	require.NoError(t, err)

	_, err = f.svc.Documents.Create(ctx, client, service.DocumentInput{OrderID: order.ID + 1000, Name: "plan", FilePath: "/x"})
	assert.EqualError(t, err, "OrderId does not exist.")

	_, err = f.svc.Comments.Create(ctx, client, service.CommentInput{OrderID: &order.ID, DocumentID: &doc.ID, Text: "both"})
	assert.EqualError(t, err, "exactly one of orderId or documentId must be set")

	missing := order.ID + 1000
	_, err = f.svc.Comments.Create(ctx, client, service.CommentInput{OrderID: &missing, Text: "nope"})
	var reference *apperr.ReferenceError
	require.True(t, errors.As(err, &reference))
	assert.Equal(t, "orderId", reference.Field)

	_, err = f.svc.Comments.Create(ctx, client, service.CommentInput{OrderID: &order.ID, Text: "on order"})
	require.NoError(t, err)
	onDoc, err := f.svc.Comments.Create(ctx, client, service.CommentInput{DocumentID: &doc.ID, Text: "on doc"})
	require.NoError(t, err)

	byDoc, err := f.svc.Comments.ListByDocument(ctx, client, doc.ID)
	require.NoError(t, err)
	require.Len(t, byDoc, 1)
	assert.Equal(t, onDoc.ID, byDoc[0].ID)

	err = f.svc.Users.Delete(ctx, f.admin, client.UserID)
	var conflict *apperr.ConflictError
	assert.True(t, errors.As(err, &conflict), "author with comments is restricted: %v", err)

	require.NoError(t, f.svc.Orders.Delete(ctx, f.admin, order.ID))
	remaining, err := builder.Select[models.Comment](f.db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining, "order deletion cascades to documents and comments")
}

func TestIntegration_PasswordChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.register(t, "ivy", "i@x.com")

	err := f.svc.Users.UpdatePassword(ctx, user, user.UserID, service.PasswordChange{
		CurrentPassword: "wrong1", NewPassword: "newpass", ConfirmPassword: "newpass",
	})
	assert.EqualError(t, err, "Current password is incorrect.")

	require.NoError(t, f.svc.Users.UpdatePassword(ctx, user, user.UserID, service.PasswordChange{
		CurrentPassword: "secret1", NewPassword: "newpass", ConfirmPassword: "newpass",
	}))

	_, err = f.svc.Auth.Login(ctx, service.LoginInput{Email: "i@x.com", Password: "newpass"})
	assert.NoError(t, err)
}

func TestIntegration_ClientProfileIsClientOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	client := f.register(t, "jill", "j@x.com")

	profile, err := f.svc.Clients.Upsert(ctx, client, service.ClientInput{Address: "1 Gate Rd"})
	require.NoError(t, err)
	assert.Equal(t, "jill", profile.FullName)
	assert.Equal(t, "1 Gate Rd", profile.Address)
	assert.EqualValues(t, 1, countRows[models.Client](t, f.db, client.UserID))

	_, err = f.svc.Clients.Upsert(ctx, f.admin, service.ClientInput{FullName: "Root"})
	var forbidden *apperr.ForbiddenError
	assert.True(t, errors.As(err, &forbidden), "got %v", err)
	assert.Zero(t, countRows[models.Client](t, f.db, f.admin.UserID))
}

func ptr[T any](v T) *T { return &v }

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
