package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// Memory-backed repository implementations. They honor the same contracts as
// the Firestore implementations, including live user-document subscriptions,
// and back the test suites.

// MemoryUserRepository is an in-memory UserRepository with watch fan-out.
type MemoryUserRepository struct {
	mu      sync.Mutex
	users   map[string]*models.User
	watches map[string][]*memoryUserSubscription
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[string]*models.User),
		watches: make(map[string][]*memoryUserSubscription),
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, uid string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[uid]
	if !ok {
		return nil, fmt.Errorf("user '%s': %w", uid, ErrNotFound)
	}
	return copyUser(user), nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("user with email '%s': %w", email, ErrNotFound)
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uids := make([]string, 0, len(r.users))
	for uid := range r.users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	users := make([]*models.User, 0, len(uids))
	for _, uid := range uids {
		users = append(users, copyUser(r.users[uid]))
	}
	return users, nil
}

func (r *MemoryUserRepository) ListByRole(ctx context.Context, roleName string) ([]*models.User, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var users []*models.User
	for _, user := range all {
		for _, name := range user.Roles {
			if name == roleName {
				users = append(users, user)
				break
			}
		}
	}
	return users, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	if _, ok := r.users[user.UID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("user '%s' already exists", user.UID)
	}
	r.users[user.UID] = copyUser(user)
	r.mu.Unlock()
	r.notify(user.UID)
	return nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	r.users[user.UID] = copyUser(user)
	r.mu.Unlock()
	r.notify(user.UID)
	return nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, uid string) error {
	r.mu.Lock()
	delete(r.users, uid)
	r.mu.Unlock()
	r.notify(uid)
	return nil
}

func (r *MemoryUserRepository) Watch(ctx context.Context, uid string) (UserSubscription, error) {
	sub := &memoryUserSubscription{
		repo:    r,
		uid:     uid,
		updates: make(chan UserSnapshot, 16),
	}
	r.mu.Lock()
	r.watches[uid] = append(r.watches[uid], sub)
	snap := r.snapshotLocked(uid)
	r.mu.Unlock()
	// Initial snapshot, mirroring Firestore listener behavior.
	sub.push(snap)
	return sub, nil
}

// TerminateWatches ends every active subscription on uid with the given
// error. Tests use it to simulate listener failures such as
// permission-denied.
func (r *MemoryUserRepository) TerminateWatches(uid string, err error) {
	r.mu.Lock()
	subs := r.watches[uid]
	delete(r.watches, uid)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.terminate(err)
	}
}

func (r *MemoryUserRepository) snapshotLocked(uid string) UserSnapshot {
	if user, ok := r.users[uid]; ok {
		return UserSnapshot{User: copyUser(user), Exists: true}
	}
	return UserSnapshot{Exists: false}
}

func (r *MemoryUserRepository) notify(uid string) {
	r.mu.Lock()
	snap := r.snapshotLocked(uid)
	subs := append([]*memoryUserSubscription(nil), r.watches[uid]...)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.push(snap)
	}
}

func (r *MemoryUserRepository) removeWatch(sub *memoryUserSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.watches[sub.uid]
	for i, s := range subs {
		if s == sub {
			r.watches[sub.uid] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type memoryUserSubscription struct {
	repo    *MemoryUserRepository
	uid     string
	updates chan UserSnapshot

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *memoryUserSubscription) push(snap UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- snap:
	default:
		// Slow consumer; drop the oldest snapshot to keep the latest.
		select {
		case <-s.updates:
		default:
		}
		s.updates <- snap
	}
}

func (s *memoryUserSubscription) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = err
	s.closed = true
	close(s.updates)
}

func (s *memoryUserSubscription) Updates() <-chan UserSnapshot { return s.updates }

func (s *memoryUserSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memoryUserSubscription) Stop() {
	s.repo.removeWatch(s)
	s.terminate(context.Canceled)
}

// MemoryRoleRepository is an in-memory RoleRepository.
type MemoryRoleRepository struct {
	mu    sync.Mutex
	roles map[string]*models.Role
}

// NewMemoryRoleRepository creates an empty MemoryRoleRepository.
func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{roles: make(map[string]*models.Role)}
}

func (r *MemoryRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[name]
	if !ok {
		return nil, fmt.Errorf("role '%s': %w", name, ErrNotFound)
	}
	return copyRole(role), nil
}

func (r *MemoryRoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	roles := make([]*models.Role, 0, len(names))
	for _, name := range names {
		roles = append(roles, copyRole(r.roles[name]))
	}
	return roles, nil
}

func (r *MemoryRoleRepository) Create(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.Name]; ok {
		return fmt.Errorf("role '%s' already exists", role.Name)
	}
	r.roles[role.Name] = copyRole(role)
	return nil
}

func (r *MemoryRoleRepository) Update(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.Name] = copyRole(role)
	return nil
}

func (r *MemoryRoleRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles, name)
	return nil
}

// MemoryInvitationRepository is an in-memory InvitationRepository.
type MemoryInvitationRepository struct {
	mu          sync.Mutex
	invitations map[string]*models.Invitation
}

// NewMemoryInvitationRepository creates an empty MemoryInvitationRepository.
func NewMemoryInvitationRepository() *MemoryInvitationRepository {
	return &MemoryInvitationRepository{invitations: make(map[string]*models.Invitation)}
}

func (r *MemoryInvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invitations[id]
	if !ok {
		return nil, fmt.Errorf("invitation '%s': %w", id, ErrNotFound)
	}
	return copyInvitation(inv), nil
}

func (r *MemoryInvitationRepository) FindLiveByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invitations {
		if inv.Email == email && inv.Status.Live() {
			return copyInvitation(inv), nil
		}
	}
	return nil, fmt.Errorf("live invitation for '%s': %w", email, ErrNotFound)
}

func (r *MemoryInvitationRepository) List(ctx context.Context) ([]*models.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invs := make([]*models.Invitation, 0, len(r.invitations))
	for _, inv := range r.invitations {
		invs = append(invs, copyInvitation(inv))
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].InvitedAt.After(invs[j].InvitedAt) })
	return invs, nil
}

func (r *MemoryInvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invitations[inv.ID]; ok {
		return fmt.Errorf("invitation '%s' already exists", inv.ID)
	}
	r.invitations[inv.ID] = copyInvitation(inv)
	return nil
}

func (r *MemoryInvitationRepository) Update(ctx context.Context, inv *models.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invitations[inv.ID] = copyInvitation(inv)
	return nil
}

// MemoryAuditRepository collects audit entries in memory.
type MemoryAuditRepository struct {
	mu      sync.Mutex
	Entries []models.AuditLog
}

// NewMemoryAuditRepository creates an empty MemoryAuditRepository.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Create(ctx context.Context, entry models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
	return nil
}

func copyUser(u *models.User) *models.User {
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	out.AllowedRoutes = copyStringMap(u.AllowedRoutes)
	out.AllowedEnvironments = copyStringMap(u.AllowedEnvironments)
	return &out
}

func copyRole(r *models.Role) *models.Role {
	out := *r
	out.Routes = copyStringMap(r.Routes)
	return &out
}

func copyInvitation(i *models.Invitation) *models.Invitation {
	out := *i
	out.Roles = append([]string(nil), i.Roles...)
	out.Environments = copyStringMap(i.Environments)
	out.History = append([]models.HistoryEntry(nil), i.History...)
	if i.Expiry != nil {
		expiry := *i.Expiry
		out.Expiry = &expiry
	}
	if i.DecidedAt != nil {
		t := *i.DecidedAt
		out.DecidedAt = &t
	}
	if i.JoinedAt != nil {
		t := *i.JoinedAt
		out.JoinedAt = &t
	}
	return &out
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
