package models

// Role is a named bundle of dashboard routes. The role name is the Firestore
// document ID.
type Role struct {
	Name        string `json:"name" firestore:"-"`
	Description string `json:"description,omitempty" firestore:"description,omitempty"`

	// Routes maps a dashboard route path to its display name.
	Routes map[string]string `json:"routes" firestore:"routes"`
}
