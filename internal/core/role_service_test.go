package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

func (e *testEnv) seedUser(t *testing.T, user *models.User) {
	t.Helper()
	require.NoError(t, e.userRepo.Create(context.Background(), user))
}

func TestGrantRoleMergesRoutes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/support": "Support", "/dashboard/shared": "Shared (support)"},
	})
	env.seedUser(t, &models.User{
		UID:           "u1",
		Email:         "a@x.com",
		Roles:         []string{"viewer"},
		AllowedRoutes: map[string]string{"/dashboard/view": "View", "/dashboard/shared": "Shared (viewer)"},
	})

	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer", "support"}, user.Roles)
	// The granted role wins on path collision.
	assert.Equal(t, map[string]string{
		"/dashboard/view":    "View",
		"/dashboard/support": "Support",
		"/dashboard/shared":  "Shared (support)",
	}, user.AllowedRoutes)
}

func TestGrantRoleTwiceAppendsTwice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/support": "Support"}})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"support", "support"}, user.Roles)
	assert.Len(t, user.AllowedRoutes, 1)
}

func TestGrantRoleUnknownRoleOrUser(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	assert.ErrorIs(t, env.roles.GrantRole(ctx, "u1", "ghost", "admin-1"), ErrRoleNotFound)

	env.seedRole(t, &models.Role{Name: "support"})
	assert.ErrorIs(t, env.roles.GrantRole(ctx, "missing", "support", "admin-1"), ErrUserNotFound)
}

func TestRevokeRoleRebuildsRoutes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/support": "Support", "/dashboard/shared": "Shared"},
	})
	env.seedRole(t, &models.Role{
		Name:   "billing",
		Routes: map[string]string{"/dashboard/billing": "Billing", "/dashboard/shared": "Shared"},
	})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "billing", "admin-1"))

	require.NoError(t, env.roles.RevokeRole(ctx, "u1", "support", "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, user.Roles)
	// The shared path survives because the remaining role still grants it;
	// the support-only path is gone.
	assert.Equal(t, map[string]string{
		"/dashboard/billing": "Billing",
		"/dashboard/shared":  "Shared",
	}, user.AllowedRoutes)
}

func TestRevokeRoleRemovesAllOccurrences(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/support": "Support"}})
	env.seedUser(t, &models.User{
		UID:           "u1",
		Email:         "a@x.com",
		Roles:         []string{"support", "support"},
		AllowedRoutes: map[string]string{"/dashboard/support": "Support"},
	})

	require.NoError(t, env.roles.RevokeRole(ctx, "u1", "support", "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Roles)
	assert.Empty(t, user.AllowedRoutes)
}

func TestRevokeRoleSkipsDanglingRoleNames(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/support": "Support"}})
	// "legacy" has no role document anymore.
	env.seedUser(t, &models.User{
		UID:   "u1",
		Email: "a@x.com",
		Roles: []string{"support", "legacy"},
	})

	require.NoError(t, env.roles.RevokeRole(ctx, "u1", "support", "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, user.Roles)
	assert.Empty(t, user.AllowedRoutes)
}

func TestReconcileRoleRefreshesHolders(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/old": "Old"}})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})
	env.seedUser(t, &models.User{UID: "u2", Email: "b@x.com"})
	env.seedUser(t, &models.User{UID: "u3", Email: "c@x.com"})
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))
	require.NoError(t, env.roles.GrantRole(ctx, "u2", "support", "admin-1"))

	require.NoError(t, env.roleRepo.Update(ctx, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/new": "New"},
	}))

	updated, err := env.roles.ReconcileRole(ctx, "support")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	for _, uid := range []string{"u1", "u2"} {
		user, err := env.userRepo.GetByID(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"/dashboard/new": "New"}, user.AllowedRoutes, uid)
	}
	// Non-holders are untouched.
	user, err := env.userRepo.GetByID(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, user.AllowedRoutes)
}

func TestUpdateRoleReconcilesHolders(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/old": "Old"}})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))

	require.NoError(t, env.roles.UpdateRole(ctx, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/new": "New"},
	}, "admin-1"))

	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/dashboard/new": "New"}, user.AllowedRoutes)
}

func TestCreateRoleRejectsDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	require.NoError(t, env.roles.CreateRole(ctx, &models.Role{Name: "support"}, "admin-1"))
	assert.ErrorIs(t, env.roles.CreateRole(ctx, &models.Role{Name: "support"}, "admin-1"), ErrRoleExists)
}

func TestDeleteRoleLeavesDanglingHolders(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support", Routes: map[string]string{"/dashboard/support": "Support"}})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})
	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))

	require.NoError(t, env.roles.DeleteRole(ctx, "support", "admin-1"))
	_, err := env.roles.GetRole(ctx, "support")
	assert.ErrorIs(t, err, ErrRoleNotFound)

	// The holder keeps the dangling name until the next revoke/reconcile.
	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, user.Roles)
	assert.Equal(t, map[string]string{"/dashboard/support": "Support"}, user.AllowedRoutes)
}

func TestRoleMutationsAreAudited(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{Name: "support"})
	env.seedUser(t, &models.User{UID: "u1", Email: "a@x.com"})

	require.NoError(t, env.roles.GrantRole(ctx, "u1", "support", "admin-1"))
	require.NoError(t, env.roles.RevokeRole(ctx, "u1", "support", "admin-1"))

	require.Len(t, env.auditRepo.Entries, 2)
	assert.Equal(t, "ROLE_GRANT", env.auditRepo.Entries[0].Action)
	assert.Equal(t, "ROLE_REVOKE", env.auditRepo.Entries[1].Action)
	assert.Equal(t, "admin-1", env.auditRepo.Entries[0].Actor)
	assert.Equal(t, "u1", env.auditRepo.Entries[0].TargetID)
}
