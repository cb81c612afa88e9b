//go:build integration

package builder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marshallshelly/fenceorders/internal/models"
	"github.com/marshallshelly/fenceorders/internal/testdb"
	"github.com/marshallshelly/fenceorders/pkg/builder"
	"github.com/marshallshelly/fenceorders/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, db *runtime.DB, username string) models.User {
	t.Helper()
	user, err := builder.Insert[models.User](db).Values(models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         models.RoleClient,
	}).One(context.Background())
	require.NoError(t, err)
	return user
}

func TestBuilder_CRUD(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	assert.NotZero(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero(), "defaults are returned")
	seedUser(t, db, "bob")

	users, err := builder.Select[models.User](db).
		Where(builder.ILike("username", "a%")).
		All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	n, err := builder.Select[models.User](db).
		Where(builder.In("username", []string{"alice", "bob", "carol"})).
		Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	updated, err := builder.Update[models.User](db).
		Set("username", "alice2").
		Where(builder.Eq("id", alice.ID)).
		ExecReturning(ctx)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "alice2", updated[0].Username)

	deleted, err := builder.Delete[models.User](db).Where(builder.Eq("id", alice.ID)).Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = builder.Select[models.User](db).Where(builder.Eq("id", alice.ID)).First(ctx)
	assert.True(t, runtime.IsNotFound(err))

	found, err := builder.Select[models.User](db).Where(builder.Eq("username", "bob")).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBuilder_TranslatedErrors(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()

	seedUser(t, db, "dup")
	_, err := builder.Insert[models.User](db).Values(models.User{
		Username: "dup", Email: "other@example.com", PasswordHash: "x", Role: models.RoleClient,
	}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrDuplicateKey), "got %v", err)

	_, err = builder.Insert[models.Order](db).Values(models.Order{UserID: 9999, Status: models.StatusPending}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrForeignKeyViolation), "got %v", err)

	_, err = builder.Insert[models.Job](db).Values(models.Job{Name: "bad", Price: -1}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrCheckViolation), "got %v", err)

	_, err = builder.Insert[models.Job](db).Values(models.Job{Name: "rounded", Price: 0.004}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrCheckViolation), "sub-cent price rounds to zero: %v", err)

	_, err = builder.Insert[models.Job](db).Values(models.Job{Name: "huge", Price: 1e9}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrNumericOutOfRange), "got %v", err)

	owner := seedUser(t, db, "owner")
	order, err := builder.Insert[models.Order](db).Values(models.Order{UserID: owner.ID, Status: models.StatusPending}).One(ctx)
	require.NoError(t, err)
	doc, err := builder.Insert[models.Document](db).Values(models.Document{OrderID: order.ID, Name: "plan", FilePath: "/plan"}).One(ctx)
	require.NoError(t, err)

	_, err = builder.Insert[models.Comment](db).Values(models.Comment{
		UserID: owner.ID, OrderID: &order.ID, DocumentID: &doc.ID, Text: "both",
	}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrCheckViolation), "comment with two parents: %v", err)

	_, err = builder.Insert[models.Comment](db).Values(models.Comment{UserID: owner.ID, Text: "orphan"}).Exec(ctx)
	assert.True(t, errors.Is(err, runtime.ErrCheckViolation), "comment without parent: %v", err)
}

func TestBuilder_OnConflictDoNothing(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()
	user := seedUser(t, db, "mgr")

	for range 3 {
		_, err := builder.Insert[models.Manager](db).
			Values(models.Manager{UserID: user.ID}).
			OnConflictDoNothing("user_id").
			Exec(ctx)
		require.NoError(t, err)
	}

	n, err := builder.Select[models.Manager](db).Where(builder.Eq("user_id", user.ID)).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestBuilder_Preload(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()
	user := seedUser(t, db, "owner")

	job, err := builder.Insert[models.Job](db).Values(models.Job{Name: "Install", Price: 50}).One(ctx)
	require.NoError(t, err)
	order, err := builder.Insert[models.Order](db).Values(models.Order{UserID: user.ID, Status: models.StatusPending}).One(ctx)
	require.NoError(t, err)
	_, err = builder.Insert[models.OrderJob](db).Values(models.OrderJob{OrderID: order.ID, JobID: job.ID, Price: 50}).Exec(ctx)
	require.NoError(t, err)

	_, err = builder.Insert[models.Manager](db).Values(models.Manager{UserID: user.ID}).Exec(ctx)
	require.NoError(t, err)

	loaded, err := builder.Select[models.Order](db).
		Where(builder.Eq("id", order.ID)).
		Preload("Products", "Jobs").
		First(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Products)
	require.Len(t, loaded.Jobs, 1)
	assert.Equal(t, job.ID, loaded.Jobs[0].JobID)

	managers, err := builder.Select[models.Manager](db).Preload("User").All(ctx)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.NotNil(t, managers[0].User)
	assert.Equal(t, "owner", managers[0].User.Username)
}

func TestBuilder_WithTxRollsBack(t *testing.T) {
	db := testdb.Start(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *runtime.Tx) error {
		_, err := builder.Insert[models.Job](tx).Values(models.Job{Name: "Temp", Price: 1}).Exec(ctx)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := builder.Select[models.Job](db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
