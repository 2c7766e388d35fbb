package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/server/middleware"
)

// AuditEntryDTO is the wire shape of one audit entry.
type AuditEntryDTO struct {
	ID                  uuid.UUID  `json:"id"`
	Timestamp           time.Time  `json:"timestamp"`
	EventType           string     `json:"event_type"`
	Severity            string     `json:"severity"`
	UserID              string     `json:"user_id,omitempty"`
	AgentID             string     `json:"agent_id,omitempty"`
	SessionID           string     `json:"session_id,omitempty"`
	Action              string     `json:"action"`
	Description         string     `json:"description"`
	IsSafetyRelated     bool       `json:"is_safety_related"`
	RequiresAdminReview bool       `json:"requires_admin_review"`
	AdminReviewed       bool       `json:"admin_reviewed"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy          string     `json:"reviewed_by,omitempty"`
	DataClassification  string     `json:"data_classification"`
	RetentionDays       int        `json:"retention_days"`
}

// SafetyEventDTO extends AuditEntryDTO with the safety trigger details.
type SafetyEventDTO struct {
	AuditEntryDTO

	TriggerType           string `json:"trigger_type"`
	TriggerContent        string `json:"trigger_content"`
	InterventionResponse  string `json:"intervention_response"`
	EscalationLevel       string `json:"escalation_level"`
	FollowUpRequired      bool   `json:"follow_up_required"`
	AdminNotificationSent bool   `json:"admin_notification_sent"`
	PrevHash              string `json:"prev_hash"`
	EntryHash             string `json:"entry_hash"`
}

func toEntryDTO(e *domain.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:                  e.ID,
		Timestamp:           e.Timestamp,
		EventType:           string(e.EventType),
		Severity:            string(e.Severity),
		UserID:              e.UserID,
		AgentID:             e.AgentID,
		SessionID:           e.SessionID,
		Action:              e.Action,
		Description:         e.Description,
		IsSafetyRelated:     e.IsSafetyRelated,
		RequiresAdminReview: e.RequiresAdminReview,
		AdminReviewed:       e.AdminReviewed,
		ReviewedAt:          e.ReviewedAt,
		ReviewedBy:          e.ReviewedBy,
		DataClassification:  string(e.DataClassification),
		RetentionDays:       e.RetentionDays,
	}
}

func toSafetyDTO(ev *domain.SafetyAuditEvent) SafetyEventDTO {
	return SafetyEventDTO{
		AuditEntryDTO:         toEntryDTO(&ev.AuditEntry),
		TriggerType:           string(ev.TriggerType),
		TriggerContent:        ev.TriggerContent,
		InterventionResponse:  ev.InterventionResponse,
		EscalationLevel:       string(ev.EscalationLevel),
		FollowUpRequired:      ev.FollowUpRequired,
		AdminNotificationSent: ev.AdminNotificationSent,
		PrevHash:              ev.PrevHash,
		EntryHash:             ev.EntryHash,
	}
}

type auditFilterParams struct {
	EventType      string     `query:"event_type" doc:"Filter by event type"`
	Severity       string     `query:"severity" doc:"Filter by severity"`
	UserID         string     `query:"user_id" doc:"Filter by user ID"`
	SessionID      string     `query:"session_id" doc:"Filter by session ID"`
	UnreviewedOnly bool       `query:"unreviewed_only" doc:"Only entries pending admin review"`
	Since          *time.Time `query:"since" doc:"Only entries at or after this time"`
	Until          *time.Time `query:"until" doc:"Only entries before this time"`
	Limit          int        `query:"limit" minimum:"0" maximum:"500" doc:"Page size (default 50)"`
	Offset         int        `query:"offset" minimum:"0" doc:"Page offset"`
}

func (p *auditFilterParams) filter() domain.AuditFilter {
	return domain.AuditFilter{
		EventType:      domain.EventType(p.EventType),
		Severity:       domain.Severity(p.Severity),
		UserID:         p.UserID,
		SessionID:      p.SessionID,
		UnreviewedOnly: p.UnreviewedOnly,
		Since:          p.Since,
		Until:          p.Until,
	}
}

type ListAuditInput struct {
	auditFilterParams
}

type ListAuditOutput struct {
	Body []AuditEntryDTO
}

type ListSafetyAuditInput struct {
	auditFilterParams
}

type ListSafetyAuditOutput struct {
	Body []SafetyEventDTO
}

type AuditSummaryInput struct {
	auditFilterParams
}

type AuditSummaryOutput struct {
	Body struct {
		Total         int            `json:"total"`
		ByType        map[string]int `json:"by_type"`
		BySeverity    map[string]int `json:"by_severity"`
		PendingReview int            `json:"pending_review"`
	}
}

type MarkReviewedInput struct {
	Body struct {
		IDs []uuid.UUID `json:"ids" minItems:"1" doc:"Audit entry IDs to mark reviewed"`
	}
}

type MarkReviewedOutput struct {
	Body struct {
		Reviewed int `json:"reviewed" doc:"Number of entries transitioned to reviewed"`
	}
}

type VerifyChainInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"10000" doc:"How many recent safety events to verify (default 1000)"`
}

type VerifyChainOutput struct {
	Body struct {
		Intact   bool   `json:"intact" doc:"True when the hash chain verifies end to end"`
		BrokenAt string `json:"broken_at,omitempty" doc:"ID of the first event whose hash does not verify"`
	}
}

// RegisterAuditRoutes wires the admin audit review surface. All routes
// are admin-only; the role check happens in the router middleware chain.
func RegisterAuditRoutes(api huma.API, auditSvc AuditService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-entries",
		Method:      http.MethodGet,
		Path:        "/admin/audit",
		Summary:     "List audit entries",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		entries, err := auditSvc.Query(ctx, input.filter(), input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to query audit log")
		}

		out := &ListAuditOutput{Body: make([]AuditEntryDTO, 0, len(entries))}
		for _, e := range entries {
			out.Body = append(out.Body, toEntryDTO(e))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-safety-events",
		Method:      http.MethodGet,
		Path:        "/admin/audit/safety",
		Summary:     "List safety intervention events",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListSafetyAuditInput) (*ListSafetyAuditOutput, error) {
		events, err := auditSvc.QuerySafety(ctx, input.filter(), input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to query safety events")
		}

		out := &ListSafetyAuditOutput{Body: make([]SafetyEventDTO, 0, len(events))}
		for _, ev := range events {
			out.Body = append(out.Body, toSafetyDTO(ev))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-summary",
		Method:      http.MethodGet,
		Path:        "/admin/audit/summary",
		Summary:     "Aggregate audit counts for the review dashboard",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *AuditSummaryInput) (*AuditSummaryOutput, error) {
		summary, err := auditSvc.Summarize(ctx, input.filter())
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to summarize audit log")
		}

		out := &AuditSummaryOutput{}
		out.Body.Total = summary.Total
		out.Body.PendingReview = summary.PendingReview
		out.Body.ByType = make(map[string]int, len(summary.ByType))
		for t, n := range summary.ByType {
			out.Body.ByType[string(t)] = n
		}
		out.Body.BySeverity = make(map[string]int, len(summary.BySeverity))
		for s, n := range summary.BySeverity {
			out.Body.BySeverity[string(s)] = n
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-audit-reviewed",
		Method:      http.MethodPost,
		Path:        "/admin/audit/review",
		Summary:     "Mark audit entries as reviewed",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *MarkReviewedInput) (*MarkReviewedOutput, error) {
		reviewer, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		n, err := auditSvc.MarkReviewed(ctx, input.Body.IDs, reviewer)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to mark entries reviewed")
		}

		out := &MarkReviewedOutput{}
		out.Body.Reviewed = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-audit-chain",
		Method:      http.MethodGet,
		Path:        "/admin/audit/verify",
		Summary:     "Verify the safety event hash chain",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *VerifyChainInput) (*VerifyChainOutput, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 1000
		}

		intact, brokenAt, err := auditSvc.Verify(ctx, limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to verify audit chain")
		}

		out := &VerifyChainOutput{}
		out.Body.Intact = intact
		out.Body.BrokenAt = brokenAt
		return out, nil
	})
}
