package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
	"github.com/parampatil/dashboardv2-sub000/pkg/messagequeue"
)

// InvitationEvent is published to the message queue on lifecycle changes so
// the notifier can email the invitee.
type InvitationEvent struct {
	Type   string                  `json:"type"` // "created", "approved", "rejected"
	Email  string                  `json:"email"`
	Status models.InvitationStatus `json:"status"`
	Expiry *time.Time              `json:"expiry,omitempty"`
}

// invitationService implements InvitationService.
type invitationService struct {
	invitationRepo db.InvitationRepository
	emailLocks     *db.KeyedLock
	queue          messagequeue.MessageQueue
	queueName      string
	audit          AuditService
	logger         *zap.Logger
	now            func() time.Time
}

// NewInvitationService creates an InvitationService. queue may be nil, in
// which case lifecycle events are not published.
func NewInvitationService(
	invitationRepo db.InvitationRepository,
	queue messagequeue.MessageQueue,
	queueName string,
	audit AuditService,
	logger *zap.Logger,
) InvitationService {
	return &invitationService{
		invitationRepo: invitationRepo,
		emailLocks:     db.NewKeyedLock(),
		queue:          queue,
		queueName:      queueName,
		audit:          audit,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Create invites an email address. Fails with ErrDuplicateInvite when a
// non-deleted invitation for the email already exists. The check-then-create
// sequence is serialized per email.
func (s *invitationService) Create(ctx context.Context, req models.CreateInvitationRequest, invitedBy string) (*models.Invitation, error) {
	s.emailLocks.Lock(req.Email)
	defer s.emailLocks.Unlock(req.Email)

	if _, err := s.invitationRepo.FindLiveByEmail(ctx, req.Email); err == nil {
		return nil, ErrDuplicateInvite
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing invitation for '%s': %w", req.Email, err)
	}

	var expiry *time.Time
	if req.Expiry != "" {
		t, err := time.Parse(time.RFC3339, req.Expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry '%s': %w", req.Expiry, err)
		}
		expiry = &t
	}

	now := s.now()
	inv := &models.Invitation{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Status:       models.StatusInvited,
		Roles:        req.Roles,
		Environments: req.Environments,
		Expiry:       expiry,
		InvitedBy:    invitedBy,
		History: []models.HistoryEntry{{
			Timestamp:   now,
			Action:      "Invitation created",
			PerformedBy: invitedBy,
		}},
		InvitedAt: now,
		UpdatedAt: now,
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.audit.Record(ctx, models.AuditLog{
		Actor: invitedBy, Action: "INVITATION_CREATE",
		TargetType: "INVITATION", TargetID: inv.ID,
		Details: map[string]string{"email": inv.Email},
	})
	s.publish(InvitationEvent{Type: "created", Email: inv.Email, Status: inv.Status, Expiry: inv.Expiry})
	return inv, nil
}

// RequestAccess records a self-service access request for an email. The
// resulting invitation waits in the requested state for an admin decision.
func (s *invitationService) RequestAccess(ctx context.Context, email string) (*models.Invitation, error) {
	s.emailLocks.Lock(email)
	defer s.emailLocks.Unlock(email)

	if _, err := s.invitationRepo.FindLiveByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateInvite
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing invitation for '%s': %w", email, err)
	}

	now := s.now()
	inv := &models.Invitation{
		ID:     uuid.NewString(),
		Email:  email,
		Status: models.StatusRequested,
		History: []models.HistoryEntry{{
			Timestamp:   now,
			Action:      "Access requested",
			PerformedBy: email,
		}},
		InvitedAt: now,
		UpdatedAt: now,
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create access request: %w", err)
	}
	return inv, nil
}

// Decide approves or rejects a requested invitation. Approval moves it to
// invited and applies the supplied roles/environments; rejection moves it to
// rejected. Only the requested state is decidable.
func (s *invitationService) Decide(ctx context.Context, id string, req models.DecideInvitationRequest, decidedBy string) (*models.Invitation, error) {
	s.emailLocks.Lock(id)
	defer s.emailLocks.Unlock(id)

	inv, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.StatusRequested {
		return nil, fmt.Errorf("%w: status is '%s'", ErrIllegalTransition, inv.Status)
	}

	now := s.now()
	action := "Invitation rejected"
	if req.Approve {
		inv.Status = models.StatusInvited
		inv.Roles = req.Roles
		inv.Environments = req.Environments
		action = "Invitation approved"
	} else {
		inv.Status = models.StatusRejected
	}
	inv.DecisionBy = decidedBy
	inv.DecidedAt = &now
	inv.UpdatedAt = now
	inv.History = append(inv.History, models.HistoryEntry{
		Timestamp:   now,
		Action:      action,
		PerformedBy: decidedBy,
	})

	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to store decision for invitation '%s': %w", id, err)
	}

	eventType := "rejected"
	if req.Approve {
		eventType = "approved"
	}
	s.audit.Record(ctx, models.AuditLog{
		Actor: decidedBy, Action: "INVITATION_DECIDE",
		TargetType: "INVITATION", TargetID: inv.ID,
		Details: map[string]string{"email": inv.Email, "decision": eventType},
	})
	s.publish(InvitationEvent{Type: eventType, Email: inv.Email, Status: inv.Status, Expiry: inv.Expiry})
	return inv, nil
}

// UpdateExpiry changes an invitation's expiry and appends a history entry.
// This is the only generic field update exposed; status is never patchable.
func (s *invitationService) UpdateExpiry(ctx context.Context, id string, expiry time.Time, updatedBy string) (*models.Invitation, error) {
	s.emailLocks.Lock(id)
	defer s.emailLocks.Unlock(id)

	inv, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv.Expiry = &expiry
	inv.UpdatedAt = now
	inv.History = append(inv.History, models.HistoryEntry{
		Timestamp:   now,
		Action:      "Expiry updated",
		PerformedBy: updatedBy,
		Details:     expiry.Format(time.RFC3339),
	})
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update expiry for invitation '%s': %w", id, err)
	}
	return inv, nil
}

// MarkJoined transitions the invitation to joined after provisioning has
// consumed it.
func (s *invitationService) MarkJoined(ctx context.Context, id, uid string) error {
	s.emailLocks.Lock(id)
	defer s.emailLocks.Unlock(id)

	inv, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	inv.Status = models.StatusJoined
	inv.JoinedAt = &now
	inv.UpdatedAt = now
	inv.History = append(inv.History, models.HistoryEntry{
		Timestamp:   now,
		Action:      "User joined the platform",
		PerformedBy: uid,
	})
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return fmt.Errorf("failed to mark invitation '%s' joined: %w", id, err)
	}
	return nil
}

// MarkDeleted flags the email's live invitation as deleted after the user
// account was torn down, freeing the email for re-invitation. A missing
// invitation is not an error.
func (s *invitationService) MarkDeleted(ctx context.Context, email, deletedBy, deletedUID string) error {
	s.emailLocks.Lock(email)
	defer s.emailLocks.Unlock(email)

	inv, err := s.invitationRepo.FindLiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find invitation for '%s': %w", email, err)
	}

	now := s.now()
	inv.Status = models.StatusDeleted
	inv.UpdatedAt = now
	inv.History = append(inv.History, models.HistoryEntry{
		Timestamp:   now,
		Action:      "User account deleted",
		PerformedBy: deletedBy,
		Details:     fmt.Sprintf("uid=%s email=%s", deletedUID, email),
	})
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return fmt.Errorf("failed to mark invitation '%s' deleted: %w", inv.ID, err)
	}
	return nil
}

func (s *invitationService) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	return s.getByID(ctx, id)
}

func (s *invitationService) List(ctx context.Context) ([]*models.Invitation, error) {
	invs, err := s.invitationRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}

func (s *invitationService) getByID(ctx context.Context, id string) (*models.Invitation, error) {
	inv, err := s.invitationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation '%s': %w", id, err)
	}
	return inv, nil
}

func (s *invitationService) publish(event InvitationEvent) {
	if s.queue == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode invitation event", zap.Error(err))
		return
	}
	if err := s.queue.Publish(s.queueName, body); err != nil {
		s.logger.Warn("failed to publish invitation event",
			zap.String("type", event.Type),
			zap.String("email", event.Email),
			zap.Error(err))
	}
}
