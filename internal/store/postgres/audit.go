package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitracka/companion/internal/domain"
)

const auditBaseColumns = `id, ts, event_type, severity, user_id, agent_id, session_id,
	action, description, metadata, is_safety_related, requires_admin_review,
	admin_reviewed, reviewed_at, reviewed_by, data_classification, retention_days,
	prev_hash, entry_hash`

const auditSafetyColumns = auditBaseColumns + `,
	trigger_type, trigger_content, intervention_response, escalation_level,
	follow_up_required, admin_notification_sent`

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("auditRepo.Insert: marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (`+auditBaseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		entry.ID, entry.Timestamp, entry.EventType, entry.Severity,
		nullable(entry.UserID), nullable(entry.AgentID), nullable(entry.SessionID),
		entry.Action, entry.Description, metadata,
		entry.IsSafetyRelated, entry.RequiresAdminReview,
		entry.AdminReviewed, entry.ReviewedAt, nullable(entry.ReviewedBy),
		entry.DataClassification, entry.RetentionDays,
		nullable(entry.PrevHash), nullable(entry.EntryHash),
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Insert: %w", err)
	}

	return nil
}

func (r *AuditRepo) InsertSafety(ctx context.Context, event *domain.SafetyAuditEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("auditRepo.InsertSafety: marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (`+auditSafetyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		         $20, $21, $22, $23, $24, $25)`,
		event.ID, event.Timestamp, event.EventType, event.Severity,
		nullable(event.UserID), nullable(event.AgentID), nullable(event.SessionID),
		event.Action, event.Description, metadata,
		event.IsSafetyRelated, event.RequiresAdminReview,
		event.AdminReviewed, event.ReviewedAt, nullable(event.ReviewedBy),
		event.DataClassification, event.RetentionDays,
		nullable(event.PrevHash), nullable(event.EntryHash),
		event.TriggerType, event.TriggerContent, event.InterventionResponse,
		event.EscalationLevel, event.FollowUpRequired, event.AdminNotificationSent,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.InsertSafety: %w", err)
	}

	return nil
}

func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.AuditEntry, error) {
	where, args := buildAuditFilter(filter)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx,
		`SELECT `+auditBaseColumns+` FROM audit_log `+where+
			fmt.Sprintf(` ORDER BY ts DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.List: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		e, scanErr := scanAuditEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("auditRepo.List: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.List: rows: %w", err)
	}

	return entries, nil
}

func (r *AuditRepo) ListSafety(ctx context.Context, filter domain.AuditFilter, limit, offset int) ([]*domain.SafetyAuditEvent, error) {
	filter.SafetyOnly = true
	where, args := buildAuditFilter(filter)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx,
		`SELECT `+auditSafetyColumns+` FROM audit_log `+where+
			fmt.Sprintf(` ORDER BY ts DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListSafety: %w", err)
	}
	defer rows.Close()

	var events []*domain.SafetyAuditEvent
	for rows.Next() {
		ev, scanErr := scanSafetyEvent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("auditRepo.ListSafety: %w", scanErr)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.ListSafety: rows: %w", err)
	}

	return events, nil
}

func (r *AuditRepo) Summarize(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error) {
	where, args := buildAuditFilter(filter)

	rows, err := r.pool.Query(ctx,
		`SELECT event_type, severity,
		        count(*),
		        count(*) FILTER (WHERE requires_admin_review AND NOT admin_reviewed)
		 FROM audit_log `+where+` GROUP BY event_type, severity`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.Summarize: %w", err)
	}
	defer rows.Close()

	summary := &domain.AuditSummary{
		ByType:     make(map[domain.EventType]int),
		BySeverity: make(map[domain.Severity]int),
	}
	for rows.Next() {
		var (
			eventType domain.EventType
			severity  domain.Severity
			count     int
			pending   int
		)
		if err := rows.Scan(&eventType, &severity, &count, &pending); err != nil {
			return nil, fmt.Errorf("auditRepo.Summarize: scan: %w", err)
		}
		summary.Total += count
		summary.ByType[eventType] += count
		summary.BySeverity[severity] += count
		summary.PendingReview += pending
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.Summarize: rows: %w", err)
	}

	return summary, nil
}

// MarkReviewed only touches unreviewed rows, so the transition is one-way
// and a repeated call leaves the original reviewed_at in place.
func (r *AuditRepo) MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE audit_log
		 SET admin_reviewed = true, reviewed_at = $2, reviewed_by = $3
		 WHERE id = ANY($1) AND admin_reviewed = false`,
		ids, at, reviewer,
	)
	if err != nil {
		return 0, fmt.Errorf("auditRepo.MarkReviewed: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteExpired removes rows past retention that have been reviewed.
// Unreviewed rows are excluded by the predicate, whatever their age.
func (r *AuditRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit_log
		 WHERE admin_reviewed = true
		   AND ts + make_interval(days => retention_days) < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("auditRepo.DeleteExpired: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *AuditRepo) LastSafetyHash(ctx context.Context) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx,
		`SELECT entry_hash FROM audit_log
		 WHERE is_safety_related = true AND entry_hash IS NOT NULL
		 ORDER BY ts DESC LIMIT 1`,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("auditRepo.LastSafetyHash: %w", err)
	}

	return hash, nil
}

func buildAuditFilter(filter domain.AuditFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	if filter.EventType != "" {
		conds = append(conds, fmt.Sprintf("event_type = $%d", arg(filter.EventType)))
	}
	if filter.Severity != "" {
		conds = append(conds, fmt.Sprintf("severity = $%d", arg(filter.Severity)))
	}
	if filter.UserID != "" {
		conds = append(conds, fmt.Sprintf("user_id = $%d", arg(filter.UserID)))
	}
	if filter.SessionID != "" {
		conds = append(conds, fmt.Sprintf("session_id = $%d", arg(filter.SessionID)))
	}
	if filter.SafetyOnly {
		conds = append(conds, "is_safety_related = true")
	}
	if filter.UnreviewedOnly {
		conds = append(conds, "admin_reviewed = false")
	}
	if filter.Since != nil {
		conds = append(conds, fmt.Sprintf("ts >= $%d", arg(*filter.Since)))
	}
	if filter.Until != nil {
		conds = append(conds, fmt.Sprintf("ts < $%d", arg(*filter.Until)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanAuditEntry(rows pgx.Rows) (*domain.AuditEntry, error) {
	var (
		e        domain.AuditEntry
		metadata []byte
		userID, agentID, sessionID, reviewedBy, prevHash, entryHash *string
	)
	if err := rows.Scan(
		&e.ID, &e.Timestamp, &e.EventType, &e.Severity,
		&userID, &agentID, &sessionID,
		&e.Action, &e.Description, &metadata,
		&e.IsSafetyRelated, &e.RequiresAdminReview,
		&e.AdminReviewed, &e.ReviewedAt, &reviewedBy,
		&e.DataClassification, &e.RetentionDays,
		&prevHash, &entryHash,
	); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	e.UserID = deref(userID)
	e.AgentID = deref(agentID)
	e.SessionID = deref(sessionID)
	e.ReviewedBy = deref(reviewedBy)
	e.PrevHash = deref(prevHash)
	e.EntryHash = deref(entryHash)

	return &e, nil
}

func scanSafetyEvent(rows pgx.Rows) (*domain.SafetyAuditEvent, error) {
	var (
		ev       domain.SafetyAuditEvent
		metadata []byte
		userID, agentID, sessionID, reviewedBy, prevHash, entryHash *string
	)
	if err := rows.Scan(
		&ev.ID, &ev.Timestamp, &ev.EventType, &ev.Severity,
		&userID, &agentID, &sessionID,
		&ev.Action, &ev.Description, &metadata,
		&ev.IsSafetyRelated, &ev.RequiresAdminReview,
		&ev.AdminReviewed, &ev.ReviewedAt, &reviewedBy,
		&ev.DataClassification, &ev.RetentionDays,
		&prevHash, &entryHash,
		&ev.TriggerType, &ev.TriggerContent, &ev.InterventionResponse,
		&ev.EscalationLevel, &ev.FollowUpRequired, &ev.AdminNotificationSent,
	); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	ev.UserID = deref(userID)
	ev.AgentID = deref(agentID)
	ev.SessionID = deref(sessionID)
	ev.ReviewedBy = deref(reviewedBy)
	ev.PrevHash = deref(prevHash)
	ev.EntryHash = deref(entryHash)

	return &ev, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
