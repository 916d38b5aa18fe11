package finance

import (
	"context"
	"strings"

	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
)

// AuditService reads the audit trail. Reads take no locks.
type AuditService struct {
	serviceBase
}

// NewAuditService creates a new AuditService
func NewAuditService(cfg ServiceConfig) *AuditService {
	return &AuditService{serviceBase: newServiceBase(cfg)}
}

// ListByReference returns every audit row recorded for reference, oldest first
func (s *AuditService) ListByReference(ctx context.Context, reference string) ([]finance.TransactionAudit, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Reference is required")
	}
	return s.repos.Audits().FindByReference(ctx, reference)
}
