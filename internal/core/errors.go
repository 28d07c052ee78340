package core

import "errors"

// Provisioning gate failures. These are the expected, common-path failures
// for sign-in of an uninvited or not-yet-approved identity.
var (
	ErrNotInvited         = errors.New("you are not invited to the platform")
	ErrInvitationRejected = errors.New("your access request was rejected")
	ErrInvitationPending  = errors.New("your access request is pending approval")
	ErrInvitationExpired  = errors.New("your invitation has expired")
	ErrAlreadyJoined      = errors.New("this invitation has already been used")
)

// Lookup and state-machine failures.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrDuplicateInvite    = errors.New("an invitation for this email already exists")
	ErrIllegalTransition  = errors.New("invitation is not in a decidable state")
	ErrRoleExists         = errors.New("role already exists")
)
