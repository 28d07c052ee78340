// Package session tracks the authenticated identity and mirrors its user
// document live. It replaces the ambient client-side auth context with an
// explicit, dependency-injected manager: consumers receive a handle and read
// snapshots or listen for updates.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// State is the session's position in its lifecycle.
type State int

const (
	// StateUnauthenticated is the initial state and the terminal state after
	// sign-out or a permission-denied subscription failure.
	StateUnauthenticated State = iota
	// StateResolving means the identity is confirmed and the user-document
	// subscription is establishing.
	StateResolving
	// StateProvisioning means the user document is absent and provisioning
	// is in flight.
	StateProvisioning
	// StateResolved means the merged identity+document view is live.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateProvisioning:
		return "provisioning"
	case StateResolved:
		return "resolved"
	default:
		return "unauthenticated"
	}
}

// Snapshot is one observation of the session.
type Snapshot struct {
	State    State
	Identity *models.Identity
	// User is the merged view of identity fields and the live user document.
	// Non-nil only in StateResolved.
	User *models.User
	// Err carries the reason for a forced transition to unauthenticated,
	// such as a provisioning gate failure.
	Err error
}

// Manager drives the session state machine. Exactly one user-document
// subscription is live per identity; SetIdentity tears the previous one down
// before establishing the next.
type Manager struct {
	userRepo    db.UserRepository
	provisioner core.ProvisioningService
	logger      *zap.Logger

	mu         sync.Mutex
	generation int
	sub        db.UserSubscription
	current    Snapshot
	updates    chan Snapshot
}

// NewManager creates a session Manager in the unauthenticated state.
func NewManager(userRepo db.UserRepository, provisioner core.ProvisioningService, logger *zap.Logger) *Manager {
	return &Manager{
		userRepo:    userRepo,
		provisioner: provisioner,
		logger:      logger,
		current:     Snapshot{State: StateUnauthenticated},
		updates:     make(chan Snapshot, 16),
	}
}

// SetIdentity switches the session to a new authenticated identity. The
// previous subscription is always stopped first. A nil identity is a
// sign-out.
func (m *Manager) SetIdentity(ctx context.Context, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	gen := m.generation
	if m.sub != nil {
		m.sub.Stop()
		m.sub = nil
	}

	if identity == nil {
		m.setLocked(Snapshot{State: StateUnauthenticated})
		return nil
	}

	id := *identity
	m.setLocked(Snapshot{State: StateResolving, Identity: &id})

	sub, err := m.userRepo.Watch(ctx, id.UID)
	if err != nil {
		m.setLocked(Snapshot{State: StateUnauthenticated, Err: err})
		return err
	}
	m.sub = sub
	go m.run(ctx, gen, sub, id)
	return nil
}

// SignOut drops the identity and returns the session to unauthenticated.
func (m *Manager) SignOut() {
	_ = m.SetIdentity(context.Background(), nil)
}

// Snapshot returns the current session snapshot.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Updates returns a stream of session snapshots. Slow consumers see the
// latest snapshots; intermediate ones may be dropped.
func (m *Manager) Updates() <-chan Snapshot {
	return m.updates
}

func (m *Manager) run(ctx context.Context, gen int, sub db.UserSubscription, identity models.Identity) {
	defer m.release(gen, sub)

	provisioned := false
	for snap := range sub.Updates() {
		if !snap.Exists {
			if provisioned {
				// The document disappeared after we saw it; treat like a
				// revoked session.
				m.transition(gen, Snapshot{State: StateUnauthenticated})
				return
			}
			provisioned = true
			if !m.transition(gen, Snapshot{State: StateProvisioning, Identity: &identity}) {
				return
			}
			if _, err := m.provisioner.ProvisionUser(ctx, identity); err != nil {
				m.logger.Info("provisioning failed for identity",
					zap.String("uid", identity.UID),
					zap.String("email", identity.Email),
					zap.Error(err))
				m.transition(gen, Snapshot{State: StateUnauthenticated, Err: err})
				return
			}
			// The create shows up as the next subscription snapshot.
			continue
		}
		provisioned = true
		merged := mergeIdentity(identity, snap.User)
		if !m.transition(gen, Snapshot{State: StateResolved, Identity: &identity, User: merged}) {
			return
		}
	}

	err := sub.Err()
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if status.Code(err) == codes.PermissionDenied {
		m.logger.Warn("user document subscription denied; forcing sign-out",
			zap.String("uid", identity.UID))
	} else {
		m.logger.Warn("user document subscription ended",
			zap.String("uid", identity.UID), zap.Error(err))
	}
	m.transition(gen, Snapshot{State: StateUnauthenticated, Err: err})
}

// release tears the subscription down when the watch goroutine exits. On
// forced sign-out paths (gate failure, vanished document, stream error) the
// generation is still live and nothing else will stop the listener; on an
// identity switch SetIdentity already stopped it and the Stop here is a
// no-op.
func (m *Manager) release(gen int, sub db.UserSubscription) {
	sub.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation && m.sub == sub {
		m.sub = nil
	}
}

// transition applies the snapshot if gen is still the live generation.
// Returns false when the generation is stale and the goroutine should exit.
func (m *Manager) transition(gen int, snap Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.setLocked(snap)
	return true
}

func (m *Manager) setLocked(snap Snapshot) {
	m.current = snap
	select {
	case m.updates <- snap:
	default:
		select {
		case <-m.updates:
		default:
		}
		m.updates <- snap
	}
}

// mergeIdentity overlays the user document on the identity: document fields
// win, identity fills the gaps.
func mergeIdentity(identity models.Identity, user *models.User) *models.User {
	merged := *user
	merged.UID = identity.UID
	if merged.Email == "" {
		merged.Email = identity.Email
	}
	if merged.Name == "" {
		merged.Name = identity.Name
	}
	if merged.ImageURL == "" {
		merged.ImageURL = identity.ImageURL
	}
	return &merged
}
