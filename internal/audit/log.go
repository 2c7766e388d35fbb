// Package audit implements the append-mostly audit log with mandatory
// sanitization, differentiated retention, the admin review workflow, and
// durable handling of safety-event writes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/domain"
)

// AlertChannel is the pub/sub channel safety alerts are published on.
const AlertChannel = "safety:alerts"

// Query limits for the admin surface.
const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// FallbackQueue is the durable queue safety writes fall back to when the
// primary store is unavailable.
type FallbackQueue interface {
	Enqueue(ctx context.Context, payload []byte) error
	// Dequeue returns the oldest queued payload, or nil when empty.
	Dequeue(ctx context.Context) ([]byte, error)
}

// AlertPublisher fans safety alerts out to the admin review surface.
type AlertPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SafetyAlert is the payload published on AlertChannel after a safety
// event is durably recorded.
type SafetyAlert struct {
	EventID         uuid.UUID              `json:"event_id"`
	UserID          string                 `json:"user_id"`
	SessionID       string                 `json:"session_id"`
	TriggerType     domain.TriggerType     `json:"trigger_type"`
	EscalationLevel domain.EscalationLevel `json:"escalation_level"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Log is the audit service. All writes pass through the redaction pipeline
// and the safety-invariant rules before reaching the store.
type Log struct {
	store    domain.AuditStore
	redactor *Redactor
	retry    RetryPolicy
	queue    FallbackQueue
	alerts   AlertPublisher
	chain    hashChain
	now      func() time.Time
}

// Option configures optional Log collaborators.
type Option func(*Log)

// WithFallbackQueue attaches the durable queue for safety writes.
func WithFallbackQueue(q FallbackQueue) Option {
	return func(l *Log) { l.queue = q }
}

// WithAlertPublisher attaches the admin alert publisher.
func WithAlertPublisher(p AlertPublisher) Option {
	return func(l *Log) { l.alerts = p }
}

// WithRetryPolicy overrides the writer's retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *Log) { l.retry = p }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates the audit log service over the given store.
func New(store domain.AuditStore, opts ...Option) *Log {
	l := &Log{
		store:    store,
		redactor: NewRedactor(),
		retry:    DefaultRetryPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InitChain seeds the integrity hash chain from the most recent stored
// safety event. Call once at startup, before any safety write.
func (l *Log) InitChain(ctx context.Context) error {
	last, err := l.store.LastSafetyHash(ctx)
	if err != nil {
		return fmt.Errorf("audit.Log.InitChain: %w", err)
	}
	l.chain.mu.Lock()
	l.chain.last = last
	l.chain.mu.Unlock()
	return nil
}

// Record sanitizes, classifies, and persists one entry, returning the
// stored copy. It never rejects a write: missing fields are defaulted. A
// persistence failure on a safety-related entry falls back to the durable
// queue; only when that also fails does Record return an error.
func (l *Log) Record(ctx context.Context, entry *domain.AuditEntry) (*domain.AuditEntry, error) {
	stored := *entry
	l.prepare(&stored)

	err := l.retry.Do(ctx, func(ctx context.Context) error {
		return l.store.Insert(ctx, &stored)
	})
	if err == nil {
		return &stored, nil
	}

	if stored.IsSafetyRelated {
		if qErr := l.enqueue(ctx, &stored, nil); qErr == nil {
			log.Warn().Str("entry_id", stored.ID.String()).Msg("audit: safety entry queued after store failure")
			return &stored, nil
		}
	}

	log.Error().Err(err).Str("entry_id", stored.ID.String()).Str("event_type", string(stored.EventType)).Msg("audit: write failed")
	return &stored, fmt.Errorf("audit.Log.Record: %w: %w", domain.ErrPersistence, err)
}

// RecordAsync persists a non-safety entry in the background so it never
// adds to request latency. Failures are logged and, for entries that turn
// out to be safety-related, queued by Record itself.
func (l *Log) RecordAsync(ctx context.Context, entry *domain.AuditEntry) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 30*time.Second)
		defer cancel()
		if _, err := l.Record(ctx, entry); err != nil {
			log.Error().Err(err).Str("event_type", string(entry.EventType)).Msg("audit: async record failed")
		}
	}()
}

// RecordSafetyEvent persists a safety event with the safety invariants
// forced: safety-related, admin review required, restricted classification,
// long retention regardless of the caller-supplied value. The event is
// linked into the integrity hash chain and, once durable, announced on the
// alert channel.
func (l *Log) RecordSafetyEvent(ctx context.Context, event *domain.SafetyAuditEvent) (*domain.SafetyAuditEvent, error) {
	stored := *event

	stored.IsSafetyRelated = true
	if stored.EventType == "" {
		stored.EventType = domain.EventSafetyIntervention
	}
	if stored.Severity == "" {
		if stored.EscalationLevel == domain.EscalationCritical {
			stored.Severity = domain.SeverityCritical
		} else {
			stored.Severity = domain.SeverityError
		}
	}
	stored.TriggerContent = l.redactor.Redact(stored.TriggerContent)
	stored.InterventionResponse = l.redactor.Redact(stored.InterventionResponse)
	l.prepare(&stored.AuditEntry)
	stored.RetentionDays = domain.SafetyRetentionDays
	if stored.Metadata.Safety == nil {
		stored.Metadata.Safety = &domain.SafetyMetadata{
			TriggerType:     stored.TriggerType,
			EscalationLevel: stored.EscalationLevel,
			Overrode:        stored.EscalationLevel.AtLeast(domain.EscalationHigh),
		}
	}
	l.chain.link(&stored)

	err := l.retry.Do(ctx, func(ctx context.Context) error {
		return l.store.InsertSafety(ctx, &stored)
	})
	if err != nil {
		if qErr := l.enqueue(ctx, nil, &stored); qErr != nil {
			// Losing a safety event is the one failure this system must
			// never swallow: escalate to the alerting path.
			log.Error().Err(err).AnErr("queue_error", qErr).Str("event_id", stored.ID.String()).Msg("audit: SAFETY EVENT WRITE LOST BOTH PATHS")
			return &stored, fmt.Errorf("audit.Log.RecordSafetyEvent: %w: %w", domain.ErrPersistence, err)
		}
		log.Warn().Str("event_id", stored.ID.String()).Msg("audit: safety event queued after store failure")
	}

	l.publishAlert(ctx, &stored)
	return &stored, nil
}

// prepare assigns identity, applies redaction, and fills classification
// defaults on the base entry.
func (l *Log) prepare(e *domain.AuditEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	if e.Metadata.Version == 0 {
		e.Metadata.Version = domain.MetadataVersion
	}

	e.Description = l.redactor.Redact(e.Description)
	if e.Metadata.Interaction != nil {
		e.Metadata.Interaction.UserMessage = l.redactor.Redact(e.Metadata.Interaction.UserMessage)
		e.Metadata.Interaction.FinalResponse = l.redactor.Redact(e.Metadata.Interaction.FinalResponse)
	}
	if e.Metadata.Failure != nil {
		e.Metadata.Failure.Error = l.redactor.Redact(e.Metadata.Failure.Error)
	}

	if e.IsSafetyRelated {
		e.RequiresAdminReview = true
		e.DataClassification = domain.ClassificationRestricted
		if e.RetentionDays < domain.SafetyRetentionDays {
			e.RetentionDays = domain.SafetyRetentionDays
		}
	} else if e.DataClassification == "" {
		switch e.EventType {
		case domain.EventAgentInteraction, domain.EventProfileUpdate:
			e.DataClassification = domain.ClassificationConfidential
		default:
			e.DataClassification = domain.ClassificationInternal
		}
	}

	if e.Severity == domain.SeverityCritical {
		e.RequiresAdminReview = true
	}
	if e.RetentionDays <= 0 {
		e.RetentionDays = domain.DefaultRetentionDays
	}
}

// queuedWrite is the envelope stored on the fallback queue.
type queuedWrite struct {
	Entry  *domain.AuditEntry       `json:"entry,omitempty"`
	Safety *domain.SafetyAuditEvent `json:"safety,omitempty"`
}

func (l *Log) enqueue(ctx context.Context, entry *domain.AuditEntry, event *domain.SafetyAuditEvent) error {
	if l.queue == nil {
		return fmt.Errorf("audit: no fallback queue configured")
	}
	payload, err := json.Marshal(queuedWrite{Entry: entry, Safety: event})
	if err != nil {
		return fmt.Errorf("audit: marshal queued write: %w", err)
	}
	return l.queue.Enqueue(context.WithoutCancel(ctx), payload)
}

func (l *Log) publishAlert(ctx context.Context, ev *domain.SafetyAuditEvent) {
	if l.alerts == nil {
		return
	}
	payload, err := json.Marshal(SafetyAlert{
		EventID:         ev.ID,
		UserID:          ev.UserID,
		SessionID:       ev.SessionID,
		TriggerType:     ev.TriggerType,
		EscalationLevel: ev.EscalationLevel,
		Timestamp:       ev.Timestamp,
	})
	if err != nil {
		return
	}
	if pubErr := l.alerts.Publish(context.WithoutCancel(ctx), AlertChannel, payload); pubErr != nil {
		log.Error().Err(pubErr).Str("event_id", ev.ID.String()).Msg("audit: alert publish failed")
	}
}

// DrainQueue moves queued safety writes back into the primary store. Run
// from a background loop; returns the number of drained writes.
func (l *Log) DrainQueue(ctx context.Context) (int, error) {
	if l.queue == nil {
		return 0, nil
	}

	drained := 0
	for {
		payload, err := l.queue.Dequeue(ctx)
		if err != nil {
			return drained, fmt.Errorf("audit.Log.DrainQueue: %w", err)
		}
		if payload == nil {
			return drained, nil
		}

		var w queuedWrite
		if err := json.Unmarshal(payload, &w); err != nil {
			log.Error().Err(err).Msg("audit: dropping undecodable queued write")
			continue
		}

		switch {
		case w.Safety != nil:
			err = l.store.InsertSafety(ctx, w.Safety)
		case w.Entry != nil:
			err = l.store.Insert(ctx, w.Entry)
		default:
			continue
		}
		if err != nil {
			// Put it back and stop; the store is still unhealthy.
			if qErr := l.queue.Enqueue(ctx, payload); qErr != nil {
				log.Error().Err(qErr).Msg("audit: requeue failed, queued write lost")
			}
			return drained, fmt.Errorf("audit.Log.DrainQueue: replay: %w", err)
		}
		drained++
	}
}

// Run drains the fallback queue on an interval until ctx is cancelled.
func (l *Log) Run(ctx context.Context, interval time.Duration) {
	if l.queue == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.DrainQueue(ctx)
			if err != nil {
				log.Error().Err(err).Msg("audit: queue drain failed")
			} else if n > 0 {
				log.Info().Int("drained", n).Msg("audit: replayed queued safety writes")
			}
		}
	}
}

// Query returns entries matching the filter, newest first.
func (l *Log) Query(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, error) {
	limit = clampLimit(limit)
	entries, err := l.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit.Log.Query: %w", err)
	}
	return entries, nil
}

// QuerySafety returns safety events matching the filter, newest first.
func (l *Log) QuerySafety(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.SafetyAuditEvent, error) {
	limit = clampLimit(limit)
	filter.SafetyOnly = true
	events, err := l.store.ListSafety(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("audit.Log.QuerySafety: %w", err)
	}
	return events, nil
}

// Summarize returns counts by type and severity for the filter.
func (l *Log) Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error) {
	summary, err := l.store.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("audit.Log.Summarize: %w", err)
	}
	return summary, nil
}

// MarkReviewed transitions entries to reviewed. Idempotent: entries already
// reviewed keep their original ReviewedAt and reviewer.
func (l *Log) MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if reviewer == "" {
		return 0, fmt.Errorf("audit.Log.MarkReviewed: %w: reviewer required", domain.ErrValidation)
	}
	n, err := l.store.MarkReviewed(ctx, ids, reviewer, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("audit.Log.MarkReviewed: %w", err)
	}
	return n, nil
}

// CleanupExpired deletes reviewed entries past retention. Unreviewed
// entries, safety or not, are never auto-deleted.
func (l *Log) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := l.store.DeleteExpired(ctx, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("audit.Log.CleanupExpired: %w", err)
	}
	return n, nil
}

// Verify recomputes the safety hash chain over up to limit stored events
// and reports the first broken entry ID, if any.
func (l *Log) Verify(ctx context.Context, limit int) (bool, string, error) {
	if limit <= 0 {
		limit = 1000
	}
	events, err := l.store.ListSafety(ctx, domain.AuditFilter{SafetyOnly: true}, limit, 0)
	if err != nil {
		return false, "", fmt.Errorf("audit.Log.Verify: %w", err)
	}

	// VerifyChain reorders by linkage itself; listing order is irrelevant.
	broken, at := VerifyChain(events)
	return !broken, at, nil
}

// RunCleanup runs CleanupExpired on an interval until ctx is cancelled.
func (l *Log) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.CleanupExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("audit: retention cleanup failed")
			} else if n > 0 {
				log.Info().Int64("deleted", n).Msg("audit: retention cleanup")
			}
		}
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
