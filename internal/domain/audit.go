package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes audit entries.
type EventType string

const (
	EventAgentInteraction     EventType = "agent_interaction"
	EventSafetyIntervention   EventType = "safety_intervention"
	EventProfileUpdate        EventType = "profile_update"
	EventNotificationDelivery EventType = "notification_delivery"
	EventSystemError          EventType = "system_error"
)

// Severity is the operational severity of an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// DataClassification is the retention/access tier of an audit entry.
type DataClassification string

const (
	ClassificationPublic       DataClassification = "public"
	ClassificationInternal     DataClassification = "internal"
	ClassificationConfidential DataClassification = "confidential"
	ClassificationRestricted   DataClassification = "restricted"
)

// Retention defaults, in days. Safety entries always get the long retention.
const (
	DefaultRetentionDays = 365
	SafetyRetentionDays  = 2555
)

// MetadataVersion is the current version of the typed metadata schema.
const MetadataVersion = 1

// AuditMetadata is a small tagged-variant payload attached to an entry.
// Exactly one of the category pointers is set, matching the entry's event
// type; Version allows the schema to evolve without reparsing old rows.
type AuditMetadata struct {
	Version     int                  `json:"version"`
	Interaction *InteractionMetadata `json:"interaction,omitempty"`
	Safety      *SafetyMetadata      `json:"safety,omitempty"`
	Delivery    *DeliveryMetadata    `json:"delivery,omitempty"`
	Failure     *FailureMetadata     `json:"failure,omitempty"`
}

// InteractionMetadata describes a normal orchestrated turn.
type InteractionMetadata struct {
	InvolvedAgents []string `json:"involved_agents,omitempty"`
	UserMessage    string   `json:"user_message,omitempty"`
	FinalResponse  string   `json:"final_response,omitempty"`
	SoftFlag       bool     `json:"soft_flag,omitempty"`
}

// SafetyMetadata mirrors the safety-specific columns for query convenience.
type SafetyMetadata struct {
	TriggerType     TriggerType     `json:"trigger_type"`
	EscalationLevel EscalationLevel `json:"escalation_level"`
	Overrode        bool            `json:"overrode"`
}

// DeliveryMetadata describes a notification delivery outcome.
type DeliveryMetadata struct {
	NotificationType string   `json:"notification_type"`
	Methods          []string `json:"methods,omitempty"`
	Blocked          bool     `json:"blocked,omitempty"`
	BlockReason      string   `json:"block_reason,omitempty"`
}

// FailureMetadata describes a capability or internal failure.
type FailureMetadata struct {
	Component string `json:"component"`
	Error     string `json:"error"`
	Timeout   bool   `json:"timeout,omitempty"`
}

// AuditEntry is an immutable interaction/safety record. Once stored, only
// the admin review fields may change, and only from unreviewed to reviewed.
type AuditEntry struct {
	ID                  uuid.UUID
	Timestamp           time.Time
	EventType           EventType
	Severity            Severity
	UserID              string
	AgentID             string
	SessionID           string
	Action              string
	Description         string
	Metadata            AuditMetadata
	IsSafetyRelated     bool
	RequiresAdminReview bool
	AdminReviewed       bool
	ReviewedAt          *time.Time
	ReviewedBy          string
	DataClassification  DataClassification
	RetentionDays       int

	// Hash chain fields, set only for safety-related entries.
	PrevHash  string
	EntryHash string
}

// ExpiresAt returns the time after which the entry is eligible for cleanup.
func (e *AuditEntry) ExpiresAt() time.Time {
	return e.Timestamp.AddDate(0, 0, e.RetentionDays)
}

// SafetyAuditEvent specializes AuditEntry with the safety trigger details.
type SafetyAuditEvent struct {
	AuditEntry

	TriggerType           TriggerType
	TriggerContent        string
	InterventionResponse  string
	EscalationLevel       EscalationLevel
	FollowUpRequired      bool
	AdminNotificationSent bool
}

// AuditFilter narrows Query/Summarize results. Zero values match everything.
type AuditFilter struct {
	EventType      EventType
	Severity       Severity
	UserID         string
	SessionID      string
	SafetyOnly     bool
	UnreviewedOnly bool
	Since          *time.Time
	Until          *time.Time
}

// AuditSummary is the aggregate view for the admin review surface.
type AuditSummary struct {
	Total         int
	ByType        map[EventType]int
	BySeverity    map[Severity]int
	PendingReview int
}

// AuditStore is the durable append interface used by the audit log service.
type AuditStore interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	InsertSafety(ctx context.Context, event *SafetyAuditEvent) error
	List(ctx context.Context, filter AuditFilter, limit, offset int) ([]*AuditEntry, error)
	ListSafety(ctx context.Context, filter AuditFilter, limit, offset int) ([]*SafetyAuditEvent, error)
	Summarize(ctx context.Context, filter AuditFilter) (*AuditSummary, error)

	// MarkReviewed transitions entries from unreviewed to reviewed and
	// returns how many rows actually changed. Already-reviewed entries are
	// left untouched so the transition is one-way and idempotent.
	MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string, at time.Time) (int, error)

	// DeleteExpired removes entries past retention that have been reviewed.
	// Unreviewed entries are never deleted, regardless of age.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// LastSafetyHash returns the entry hash of the most recent safety event,
	// or "" when the chain is empty.
	LastSafetyHash(ctx context.Context) (string, error)
}
