package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// testEnv wires the core services over in-memory repositories.
type testEnv struct {
	userRepo       *db.MemoryUserRepository
	roleRepo       *db.MemoryRoleRepository
	invitationRepo *db.MemoryInvitationRepository
	auditRepo      *db.MemoryAuditRepository

	invitations  InvitationService
	roles        RoleService
	entitlements EntitlementService
	provisioner  ProvisioningService
	users        UserService
	accounts     *fakeAccounts
}

// fakeAccounts is a test AccountDeleter.
type fakeAccounts struct {
	deleted []string
	err     error
}

func (f *fakeAccounts) DeleteAccount(ctx context.Context, uid string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

func newTestEnv() *testEnv {
	logger := zap.NewNop()
	env := &testEnv{
		userRepo:       db.NewMemoryUserRepository(),
		roleRepo:       db.NewMemoryRoleRepository(),
		invitationRepo: db.NewMemoryInvitationRepository(),
		auditRepo:      db.NewMemoryAuditRepository(),
		accounts:       &fakeAccounts{},
	}
	audit := NewAuditService(env.auditRepo, logger)
	userLock := db.NewKeyedLock()
	env.invitations = NewInvitationService(env.invitationRepo, nil, "", audit, logger)
	env.roles = NewRoleService(env.userRepo, env.roleRepo, userLock, audit, logger)
	env.entitlements = NewEntitlementService(env.userRepo, userLock, audit, logger)
	env.provisioner = NewProvisioningService(env.userRepo, env.invitationRepo, env.invitations, env.roles, env.entitlements, logger)
	env.users = NewUserService(env.userRepo, env.accounts, env.invitations, audit, logger)
	return env
}

func (e *testEnv) seedInvitation(t *testing.T, inv *models.Invitation) *models.Invitation {
	t.Helper()
	if inv.ID == "" {
		inv.ID = "inv-" + inv.Email
	}
	require.NoError(t, e.invitationRepo.Create(context.Background(), inv))
	return inv
}

func (e *testEnv) seedRole(t *testing.T, role *models.Role) {
	t.Helper()
	require.NoError(t, e.roleRepo.Create(context.Background(), role))
}

func TestProvisionUserWithoutInvitation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	user, err := env.provisioner.ProvisionUser(ctx, models.Identity{UID: "u1", Email: "nobody@x.com"})
	assert.ErrorIs(t, err, ErrNotInvited)
	assert.Nil(t, user)

	_, err = env.userRepo.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, db.ErrNotFound, "no user document may be created")
}

func TestProvisionUserStatusGates(t *testing.T) {
	cases := []struct {
		name    string
		status  models.InvitationStatus
		wantErr error
	}{
		{"rejected", models.StatusRejected, ErrInvitationRejected},
		{"requested", models.StatusRequested, ErrInvitationPending},
		{"joined", models.StatusJoined, ErrAlreadyJoined},
		{"expired status", models.StatusExpired, ErrInvitationExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.seedInvitation(t, &models.Invitation{
				Email:  "a@x.com",
				Status: tc.status,
			})
			_, err := env.provisioner.ProvisionUser(context.Background(), models.Identity{UID: "u1", Email: "a@x.com"})
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestProvisionUserExpiredInvitation(t *testing.T) {
	env := newTestEnv()
	past := time.Now().UTC().Add(-time.Hour)
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusInvited,
		Expiry: &past,
	})

	_, err := env.provisioner.ProvisionUser(context.Background(), models.Identity{UID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvitationExpired)

	_, err = env.userRepo.GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestProvisionUserJoinedPastExpiryReportsExpired(t *testing.T) {
	env := newTestEnv()
	past := time.Now().UTC().Add(-time.Hour)
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusJoined,
		Expiry: &past,
	})

	// Lazy expiry wins over the joined gate.
	_, err := env.provisioner.ProvisionUser(context.Background(), models.Identity{UID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.False(t, errors.Is(err, ErrAlreadyJoined))
}

func TestProvisionUserAppliesInvitation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRole(t, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/customersupport/bug-report": "Bug Report"},
	})
	inv := env.seedInvitation(t, &models.Invitation{
		Email:        "a@x.com",
		Status:       models.StatusInvited,
		Roles:        []string{"support"},
		Environments: map[string]string{"dev": "Development"},
	})

	user, err := env.provisioner.ProvisionUser(ctx, models.Identity{UID: "u1", Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, "u1", user.UID)
	assert.Equal(t, []string{"support"}, user.Roles)
	assert.Equal(t, map[string]string{"/dashboard/customersupport/bug-report": "Bug Report"}, user.AllowedRoutes)
	assert.Equal(t, map[string]string{"dev": "Development"}, user.AllowedEnvironments)

	updated, err := env.invitationRepo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusJoined, updated.Status)
	require.NotNil(t, updated.JoinedAt)
	last := updated.History[len(updated.History)-1]
	assert.Equal(t, "User joined the platform", last.Action)
	assert.Equal(t, "u1", last.PerformedBy)
}

func TestProvisionUserMissingRoleFailsAfterCreate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusInvited,
		Roles:  []string{"ghost"},
	})

	_, err := env.provisioner.ProvisionUser(ctx, models.Identity{UID: "u1", Email: "a@x.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleNotFound)

	// Best-effort provisioning: the user record exists without the failed
	// grant, and the invitation was not consumed.
	user, err := env.userRepo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Roles)

	inv, err := env.invitationRepo.FindLiveByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvited, inv.Status)
}

func TestProvisionUserDeletedInvitationCountsAsNotInvited(t *testing.T) {
	env := newTestEnv()
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusDeleted,
	})

	_, err := env.provisioner.ProvisionUser(context.Background(), models.Identity{UID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrNotInvited)
}

func TestProvisionUserRepositoryFailureWraps(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedInvitation(t, &models.Invitation{
		Email:  "a@x.com",
		Status: models.StatusInvited,
	})
	// A second provisioning attempt for the same uid hits the duplicate
	// create and must surface an error rather than silently succeed.
	_, err := env.provisioner.ProvisionUser(ctx, models.Identity{UID: "u1", Email: "a@x.com"})
	require.NoError(t, err)

	env.seedInvitation(t, &models.Invitation{
		ID:     "inv-b",
		Email:  "b@x.com",
		Status: models.StatusInvited,
	})
	_, err = env.provisioner.ProvisionUser(ctx, models.Identity{UID: "u1", Email: "b@x.com"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotInvited))
}
