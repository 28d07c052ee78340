package models

import "time"

// InvitationStatus is the closed set of invitation states.
type InvitationStatus string

const (
	StatusInvited   InvitationStatus = "invited"
	StatusRequested InvitationStatus = "requested"
	StatusRejected  InvitationStatus = "rejected"
	StatusJoined    InvitationStatus = "joined"
	StatusExpired   InvitationStatus = "expired"
	StatusDeleted   InvitationStatus = "deleted"
)

// Valid reports whether s is one of the known invitation states.
func (s InvitationStatus) Valid() bool {
	switch s {
	case StatusInvited, StatusRequested, StatusRejected, StatusJoined, StatusExpired, StatusDeleted:
		return true
	}
	return false
}

// Live reports whether the invitation still counts against the
// one-live-invitation-per-email rule. Only deleted invitations free the email
// for re-invitation.
func (s InvitationStatus) Live() bool {
	return s != StatusDeleted
}

// HistoryEntry is one append-only record of something that happened to an
// invitation.
type HistoryEntry struct {
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp"`
	Action      string    `json:"action" firestore:"action"`
	PerformedBy string    `json:"performedBy" firestore:"performedBy"`
	Details     string    `json:"details,omitempty" firestore:"details,omitempty"`
}

// Invitation gates account creation for an email address and carries the
// roles and environments to grant when the invitee joins.
type Invitation struct {
	ID     string           `json:"id" firestore:"-"`
	Email  string           `json:"email" firestore:"email"`
	Status InvitationStatus `json:"status" firestore:"status"`

	Roles        []string          `json:"roles" firestore:"roles"`
	Environments map[string]string `json:"environments" firestore:"environments"`

	// Expiry, when set, makes the invitation unusable once the current time
	// passes it. Expiry is evaluated lazily at consumption time.
	Expiry *time.Time `json:"expiry,omitempty" firestore:"expiry,omitempty"`

	InvitedBy  string `json:"invitedBy,omitempty" firestore:"invitedBy,omitempty"`
	DecisionBy string `json:"decisionBy,omitempty" firestore:"decisionBy,omitempty"`

	History []HistoryEntry `json:"history" firestore:"history"`

	InvitedAt time.Time  `json:"invitedAt" firestore:"invitedAt"`
	UpdatedAt time.Time  `json:"updatedAt" firestore:"updatedAt"`
	DecidedAt *time.Time `json:"decidedAt,omitempty" firestore:"decidedAt,omitempty"`
	JoinedAt  *time.Time `json:"joinedAt,omitempty" firestore:"joinedAt,omitempty"`
}

// ExpiredAt reports whether the invitation's expiry has passed at the given
// instant. Invitations without an expiry never expire.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i.Expiry != nil && now.After(*i.Expiry)
}
