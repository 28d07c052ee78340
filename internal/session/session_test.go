package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

type sessionFixture struct {
	userRepo       *db.MemoryUserRepository
	invitationRepo *db.MemoryInvitationRepository
	roleRepo       *db.MemoryRoleRepository
	manager        *Manager
}

func newSessionFixture() *sessionFixture {
	logger := zap.NewNop()
	userRepo := db.NewMemoryUserRepository()
	roleRepo := db.NewMemoryRoleRepository()
	invitationRepo := db.NewMemoryInvitationRepository()
	audit := core.NewAuditService(db.NewMemoryAuditRepository(), logger)
	userLock := db.NewKeyedLock()

	invitations := core.NewInvitationService(invitationRepo, nil, "", audit, logger)
	roles := core.NewRoleService(userRepo, roleRepo, userLock, audit, logger)
	entitlements := core.NewEntitlementService(userRepo, userLock, audit, logger)
	provisioner := core.NewProvisioningService(userRepo, invitationRepo, invitations, roles, entitlements, logger)

	return &sessionFixture{
		userRepo:       userRepo,
		invitationRepo: invitationRepo,
		roleRepo:       roleRepo,
		manager:        NewManager(userRepo, provisioner, logger),
	}
}

func waitForState(t *testing.T, m *Manager, want State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Snapshot().State == want
	}, 2*time.Second, 5*time.Millisecond, "session never reached state %s", want)
	return m.Snapshot()
}

func TestSessionResolvesExistingUser(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{
		UID:           "u1",
		Email:         "a@x.com",
		Name:          "Stored Name",
		Roles:         []string{"support"},
		AllowedRoutes: map[string]string{"/dashboard/support": "Support"},
	}))

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{
		UID:      "u1",
		Email:    "a@x.com",
		Name:     "Token Name",
		ImageURL: "https://img/u1",
	}))

	snap := waitForState(t, f.manager, StateResolved)
	require.NotNil(t, snap.User)
	// Document fields win; the identity fills gaps.
	assert.Equal(t, "Stored Name", snap.User.Name)
	assert.Equal(t, "https://img/u1", snap.User.ImageURL)
	assert.Equal(t, []string{"support"}, snap.User.Roles)
}

func TestSessionProvisionsAbsentUser(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.roleRepo.Create(ctx, &models.Role{
		Name:   "support",
		Routes: map[string]string{"/dashboard/support": "Support"},
	}))
	require.NoError(t, f.invitationRepo.Create(ctx, &models.Invitation{
		ID:     "inv-1",
		Email:  "a@x.com",
		Status: models.StatusInvited,
		Roles:  []string{"support"},
	}))

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))

	snap := waitForState(t, f.manager, StateResolved)
	require.NotNil(t, snap.User)
	assert.Equal(t, []string{"support"}, snap.User.Roles)

	inv, err := f.invitationRepo.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusJoined, inv.Status)
}

func TestSessionProvisioningGateFailure(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "nobody@x.com"}))

	snap := waitForState(t, f.manager, StateUnauthenticated)
	assert.ErrorIs(t, snap.Err, core.ErrNotInvited)
	assert.Nil(t, snap.User)
}

func TestSessionSignOut(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))
	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	f.manager.SignOut()

	snap := f.manager.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.NoError(t, snap.Err)
}

func TestSessionIdentitySwitchDropsOldSubscription(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u2", Email: "b@x.com"}))

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u2", Email: "b@x.com"}))
	waitForState(t, f.manager, StateResolved)

	// A late update on the first user's document must not leak into the
	// second identity's session.
	require.NoError(t, f.userRepo.Update(ctx, &models.User{UID: "u1", Email: "a@x.com", Name: "Changed"}))
	time.Sleep(50 * time.Millisecond)

	snap := f.manager.Snapshot()
	assert.Equal(t, StateResolved, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u2", snap.User.UID)
	assert.Equal(t, "b@x.com", snap.User.Email)
}

func TestSessionTracksDocumentUpdates(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))
	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	require.NoError(t, f.userRepo.Update(ctx, &models.User{
		UID:   "u1",
		Email: "a@x.com",
		Roles: []string{"support"},
	}))

	require.Eventually(t, func() bool {
		snap := f.manager.Snapshot()
		return snap.State == StateResolved && snap.User != nil && len(snap.User.Roles) == 1
	}, 2*time.Second, 5*time.Millisecond, "role grant never reached the session")
}

func TestSessionDocumentDeletionRevokesSession(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))
	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	require.NoError(t, f.userRepo.Delete(ctx, "u1"))

	waitForState(t, f.manager, StateUnauthenticated)
}

func TestSessionPermissionDeniedForcesSignOut(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))
	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	f.userRepo.TerminateWatches("u1", status.Error(codes.PermissionDenied, "missing or insufficient permissions"))

	snap := waitForState(t, f.manager, StateUnauthenticated)
	assert.Equal(t, codes.PermissionDenied, status.Code(snap.Err))
}

// recordingUserRepo wraps a repository so tests can observe subscription
// teardown.
type recordingUserRepo struct {
	db.UserRepository

	mu   sync.Mutex
	subs []*recordingSubscription
}

func (r *recordingUserRepo) Watch(ctx context.Context, uid string) (db.UserSubscription, error) {
	inner, err := r.UserRepository.Watch(ctx, uid)
	if err != nil {
		return nil, err
	}
	sub := &recordingSubscription{UserSubscription: inner}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return sub, nil
}

func (r *recordingUserRepo) lastSub(t *testing.T) *recordingSubscription {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.subs)
	return r.subs[len(r.subs)-1]
}

type recordingSubscription struct {
	db.UserSubscription
	stopped atomic.Bool
}

func (s *recordingSubscription) Stop() {
	s.stopped.Store(true)
	s.UserSubscription.Stop()
}

func newRecordingFixture() (*sessionFixture, *recordingUserRepo) {
	f := newSessionFixture()
	repo := &recordingUserRepo{UserRepository: f.userRepo}
	f.manager = NewManager(repo, f.manager.provisioner, zap.NewNop())
	return f, repo
}

func TestSessionGateFailureStopsSubscription(t *testing.T) {
	f, repo := newRecordingFixture()
	ctx := context.Background()

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "nobody@x.com"}))
	waitForState(t, f.manager, StateUnauthenticated)

	sub := repo.lastSub(t)
	require.Eventually(t, func() bool {
		return sub.stopped.Load()
	}, 2*time.Second, 5*time.Millisecond, "gate failure must tear the listener down")
}

func TestSessionDocumentDeletionStopsSubscription(t *testing.T) {
	f, repo := newRecordingFixture()
	ctx := context.Background()
	require.NoError(t, f.userRepo.Create(ctx, &models.User{UID: "u1", Email: "a@x.com"}))

	require.NoError(t, f.manager.SetIdentity(ctx, &models.Identity{UID: "u1", Email: "a@x.com"}))
	waitForState(t, f.manager, StateResolved)

	require.NoError(t, f.userRepo.Delete(ctx, "u1"))
	waitForState(t, f.manager, StateUnauthenticated)

	sub := repo.lastSub(t)
	require.Eventually(t, func() bool {
		return sub.stopped.Load()
	}, 2*time.Second, 5*time.Millisecond, "revoked session must tear the listener down")
}

func TestSessionStateStrings(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "resolving", StateResolving.String())
	assert.Equal(t, "provisioning", StateProvisioning.String())
	assert.Equal(t, "resolved", StateResolved.String())
}
