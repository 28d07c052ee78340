package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

func TestDeleteUserMarksInvitationDeleted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusJoined,
	})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	require.NoError(t, env.users.Delete(ctx, "u1", "admin-1"))

	assert.Equal(t, []string{"u1"}, env.accounts.deleted)
	_, err := env.userRepo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, db.ErrNotFound)

	// The invitation is retired so the email can be invited again.
	_, err = env.invitationRepo.FindLiveByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, db.ErrNotFound)
	inv, err := env.invitationRepo.GetByID(ctx, "inv-a@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, inv.Status)
	assert.Equal(t, "User account deleted", inv.History[len(inv.History)-1].Action)
}

func TestDeleteUserAuthFailureIsPartialSuccess(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})
	env.accounts.err = errors.New("auth backend down")

	// One side failing is accepted; the document is still removed.
	require.NoError(t, env.users.Delete(ctx, "u1", "admin-1"))
	_, err := env.userRepo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestDeleteUserWithoutDocument(t *testing.T) {
	env := newTestEnv()
	err := env.users.Delete(context.Background(), "missing", "admin-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, env.accounts.deleted, "nothing may be deleted without a document")
}

func TestDeleteUserWithoutEmailFails(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, &models.User{UID: "u1"})
	err := env.users.Delete(context.Background(), "u1", "admin-1")
	assert.Error(t, err)
	assert.Empty(t, env.accounts.deleted)
}

func TestDeleteUserIsAudited(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	require.NoError(t, env.users.Delete(context.Background(), "u1", "admin-1"))

	require.Len(t, env.auditRepo.Entries, 1)
	entry := env.auditRepo.Entries[0]
	assert.Equal(t, "USER_DELETE", entry.Action)
	assert.Equal(t, "admin-1", entry.Actor)
	assert.Equal(t, "u1", entry.TargetID)
	assert.Equal(t, "a@x.com", entry.Details["email"])
}

func TestGetByIDUnknownUser(t *testing.T) {
	env := newTestEnv()
	_, err := env.users.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetByEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	user, err := env.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UID)

	_, err = env.users.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "u2", Email: "b@x.com"})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].UID)
	assert.Equal(t, "u2", users[1].UID)
}
