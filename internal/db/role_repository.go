package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

const rolesCollection = "roles"

// firestoreRoleRepository implements RoleRepository on Firestore.
type firestoreRoleRepository struct {
	client *firestore.Client
}

// NewFirestoreRoleRepository creates a Firestore-backed RoleRepository.
func NewFirestoreRoleRepository(client *firestore.Client) RoleRepository {
	return &firestoreRoleRepository{client: client}
}

func (r *firestoreRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	if name == "" {
		return nil, errors.New("role name cannot be empty")
	}
	snap, err := r.client.Collection(rolesCollection).Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("role '%s': %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get role '%s': %w", name, err)
	}
	return decodeRole(snap)
}

func (r *firestoreRoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	iter := r.client.Collection(rolesCollection).Documents(ctx)
	defer iter.Stop()

	var roles []*models.Role
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list roles: %w", err)
		}
		role, err := decodeRole(snap)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (r *firestoreRoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.Name == "" {
		return errors.New("role name cannot be empty for Create")
	}
	_, err := r.client.Collection(rolesCollection).Doc(role.Name).Create(ctx, role)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("role '%s' already exists: %w", role.Name, err)
		}
		return fmt.Errorf("failed to create role '%s': %w", role.Name, err)
	}
	return nil
}

func (r *firestoreRoleRepository) Update(ctx context.Context, role *models.Role) error {
	if role.Name == "" {
		return errors.New("role name cannot be empty for Update")
	}
	// Full overwrite rather than merge: a route removed from the request must
	// disappear from the stored map.
	_, err := r.client.Collection(rolesCollection).Doc(role.Name).Set(ctx, role)
	if err != nil {
		return fmt.Errorf("failed to update role '%s': %w", role.Name, err)
	}
	return nil
}

func (r *firestoreRoleRepository) Delete(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("role name cannot be empty for Delete")
	}
	_, err := r.client.Collection(rolesCollection).Doc(name).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete role '%s': %w", name, err)
	}
	return nil
}

func decodeRole(snap *firestore.DocumentSnapshot) (*models.Role, error) {
	var role models.Role
	if err := snap.DataTo(&role); err != nil {
		return nil, fmt.Errorf("failed to decode role '%s': %w", snap.Ref.ID, err)
	}
	role.Name = snap.Ref.ID
	return &role, nil
}
