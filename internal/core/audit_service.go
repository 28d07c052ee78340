package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/models"
)

// auditService implements AuditService.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates an AuditService backed by the given repository.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{auditRepo: auditRepo, logger: logger}
}

// Record writes an audit entry. Audit failures are logged and swallowed; the
// admin action itself must not fail because the trail could not be written.
func (s *auditService) Record(ctx context.Context, entry models.AuditLog) {
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("actor", entry.Actor),
			zap.Error(err))
	}
}
