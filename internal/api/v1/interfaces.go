package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/orchestrator"
)

// ChatOrchestrator abstracts the message pipeline for handler testing.
// *orchestrator.Orchestrator satisfies this interface.
type ChatOrchestrator interface {
	Process(ctx context.Context, req *orchestrator.Request) (*orchestrator.Result, error)
}

// AuditService abstracts the admin audit surface for handler testing.
// *audit.Log satisfies this interface.
type AuditService interface {
	Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, error)
	QuerySafety(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.SafetyAuditEvent, error)
	Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error)
	MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string) (int, error)
	Verify(ctx context.Context, limit int) (bool, string, error)
}

// NotificationPolicy abstracts the notification preference surface for
// handler testing. *notify.Policy satisfies this interface.
type NotificationPolicy interface {
	Settings(ctx context.Context, userID string) (*domain.NotificationSettings, error)
	UpdateSettings(ctx context.Context, settings *domain.NotificationSettings) error
	OptOut(ctx context.Context, userID string, t domain.NotificationType) error
	OptIn(ctx context.Context, userID string, t domain.NotificationType) error
}
