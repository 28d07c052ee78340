package models

import "time"

// AuditLog records one admin action for the audit trail.
type AuditLog struct {
	ID         string            `json:"id" firestore:"-"`
	Timestamp  time.Time         `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	Actor      string            `json:"actor" firestore:"actor"`
	Action     string            `json:"action" firestore:"action"`           // e.g. "ROLE_GRANT", "INVITATION_DECIDE"
	TargetType string            `json:"targetType" firestore:"targetType"`   // "USER", "ROLE", "INVITATION"
	TargetID   string            `json:"targetId" firestore:"targetId"`
	Details    map[string]string `json:"details,omitempty" firestore:"details,omitempty"`
}
