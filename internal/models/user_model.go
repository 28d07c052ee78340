package models

import "time"

// User represents a dashboard user. The Firebase Auth UID is the Firestore
// document ID.
type User struct {
	UID      string `json:"uid" firestore:"-"`
	Email    string `json:"email" firestore:"email"`
	Name     string `json:"name,omitempty" firestore:"name,omitempty"`
	ImageURL string `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`

	// Roles is the ordered list of role names assigned to the user. The list
	// is not deduplicated; granting a role twice appends it twice.
	Roles []string `json:"roles" firestore:"roles"`

	// AllowedRoutes caches the union of the route maps of every role in
	// Roles, keyed by route path. It is recomputed on grant/revoke and on
	// role reconciliation, not when a role document changes on its own.
	AllowedRoutes map[string]string `json:"allowedRoutes" firestore:"allowedRoutes"`

	// AllowedEnvironments maps environment key (e.g. "dev") to display name.
	AllowedEnvironments map[string]string `json:"allowedEnvironments" firestore:"allowedEnvironments"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Identity is the minimal profile supplied by the identity provider on
// sign-in.
type Identity struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}
