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

const invitationsCollection = "invitations"

// firestoreInvitationRepository implements InvitationRepository on Firestore.
type firestoreInvitationRepository struct {
	client *firestore.Client
}

// NewFirestoreInvitationRepository creates a Firestore-backed
// InvitationRepository.
func NewFirestoreInvitationRepository(client *firestore.Client) InvitationRepository {
	return &firestoreInvitationRepository{client: client}
}

func (r *firestoreInvitationRepository) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	if id == "" {
		return nil, errors.New("invitation id cannot be empty")
	}
	snap, err := r.client.Collection(invitationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("invitation '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invitation '%s': %w", id, err)
	}
	return decodeInvitation(snap)
}

func (r *firestoreInvitationRepository) FindLiveByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	// Deleted invitations are filtered client-side so the query needs no
	// composite index.
	iter := r.client.Collection(invitationsCollection).Where("email", "==", email).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query invitations for '%s': %w", email, err)
		}
		inv, err := decodeInvitation(snap)
		if err != nil {
			return nil, err
		}
		if inv.Status.Live() {
			return inv, nil
		}
	}
	return nil, fmt.Errorf("live invitation for '%s': %w", email, ErrNotFound)
}

func (r *firestoreInvitationRepository) List(ctx context.Context) ([]*models.Invitation, error) {
	iter := r.client.Collection(invitationsCollection).OrderBy("invitedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var invs []*models.Invitation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list invitations: %w", err)
		}
		inv, err := decodeInvitation(snap)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, nil
}

func (r *firestoreInvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		return errors.New("invitation id cannot be empty for Create")
	}
	_, err := r.client.Collection(invitationsCollection).Doc(inv.ID).Create(ctx, inv)
	if err != nil {
		return fmt.Errorf("failed to create invitation '%s': %w", inv.ID, err)
	}
	return nil
}

func (r *firestoreInvitationRepository) Update(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		return errors.New("invitation id cannot be empty for Update")
	}
	_, err := r.client.Collection(invitationsCollection).Doc(inv.ID).Set(ctx, inv)
	if err != nil {
		return fmt.Errorf("failed to update invitation '%s': %w", inv.ID, err)
	}
	return nil
}

func decodeInvitation(snap *firestore.DocumentSnapshot) (*models.Invitation, error) {
	var inv models.Invitation
	if err := snap.DataTo(&inv); err != nil {
		return nil, fmt.Errorf("failed to decode invitation '%s': %w", snap.Ref.ID, err)
	}
	inv.ID = snap.Ref.ID
	return &inv, nil
}
