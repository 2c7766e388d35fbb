// Package orchestrator receives every user message, gates it through the
// safety classifier before and after specialist dispatch, composes the
// final response, and writes the audit trail. The safety authority can
// unconditionally override any specialist output.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vitracka/companion/internal/capability"
	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/safety"
)

const maxMessageLen = 10000

// genericSafeResponse is returned when every specialist fails; internal
// errors are never surfaced raw to the caller.
const genericSafeResponse = "I'm having trouble putting a good answer together right now - " +
	"please try again in a moment. If you need support urgently, the 988 Lifeline (call or " +
	"text 988) is available any time."

// Classifier is the safety pre/post-check dependency.
type Classifier interface {
	Classify(ctx context.Context, text string, profile *domain.UserProfile) (*domain.SafetyVerdict, error)
}

// AuditRecorder is the slice of the audit log the orchestrator writes
// through.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) (*domain.AuditEntry, error)
	RecordAsync(ctx context.Context, entry *domain.AuditEntry)
	RecordSafetyEvent(ctx context.Context, event *domain.SafetyAuditEvent) (*domain.SafetyAuditEvent, error)
}

// AdminNotifier pushes safety alerts to the admin on-call channel.
type AdminNotifier interface {
	SafetyAlert(ctx context.Context, event *domain.SafetyAuditEvent) error
}

// Request is the single inbound shape the API layer hands to Process.
type Request struct {
	UserID    string
	Message   string
	SessionID string
	Context   map[string]any
}

// Result is the outcome of one orchestrated turn.
type Result struct {
	FinalResponse    string
	InvolvedAgents   []string
	SafetyOverride   bool
	SessionID        string
	RequiresFollowUp bool
	Context          map[string]any
}

// Orchestrator coordinates the full turn lifecycle: admission -> session
// lock -> pre-check -> dispatch -> post-check -> composition -> audit.
type Orchestrator struct {
	classifier Classifier
	audit      AuditRecorder
	profiles   domain.UserProfileStore
	registry   *capability.Registry
	sessions   *SessionRegistry
	limiter    *UserLimiter
	notifier   AdminNotifier
	capTimeout time.Duration
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithAdminNotifier attaches the admin safety-alert channel.
func WithAdminNotifier(n AdminNotifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New creates the orchestrator. capTimeout bounds each specialist
// capability call; the safety checks are never subject to it.
func New(
	classifier Classifier,
	auditLog AuditRecorder,
	profiles domain.UserProfileStore,
	registry *capability.Registry,
	sessions *SessionRegistry,
	limiter *UserLimiter,
	capTimeout time.Duration,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		audit:      auditLog,
		profiles:   profiles,
		registry:   registry,
		sessions:   sessions,
		limiter:    limiter,
		capTimeout: capTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process handles one user message end to end. It is safe for concurrent
// use; all mutations to one session are serialized on the session lock.
func (o *Orchestrator) Process(ctx context.Context, req *Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if !o.limiter.Allow(req.UserID) {
		return nil, fmt.Errorf("orchestrator.Process: user %q: %w", req.UserID, domain.ErrRateLimited)
	}

	profile := o.loadProfile(ctx, req.UserID)

	handle := o.sessions.Acquire(req.SessionID, req.UserID)
	defer handle.Release()
	sess := handle.Session()

	// Pre-check the inbound message. Classifier failure fails closed; no
	// path skips this step.
	verdict := safety.FailClosed(o.classifier.Classify(ctx, req.Message, profile))
	if verdict.OverridesOtherAgents {
		// No specialist ever sees the raw message on this branch.
		return o.override(ctx, req, sess, verdict, req.Message), nil
	}

	var softNudge *domain.SafetyVerdict
	if verdict.IsIntervention {
		softNudge = verdict
	}

	caps := o.registry.Select(classifyIntent(req.Message, req.Context))
	candidates := o.dispatch(ctx, req, profile, sess, caps)

	// Post-check every candidate output before it can reach the user. A
	// specialist could itself produce unsafe content; this check runs even
	// under timeout pressure.
	for _, cand := range candidates {
		v := safety.FailClosed(o.classifier.Classify(ctx, cand.text, profile))
		if v.OverridesOtherAgents {
			return o.override(ctx, req, sess, v, cand.text), nil
		}
	}

	parts := make([]string, 0, len(candidates)+1)
	involved := make([]string, 0, len(candidates)+1)
	for _, cand := range candidates {
		parts = append(parts, cand.text)
		involved = append(involved, cand.name)
	}

	requiresFollowUp := false
	if softNudge != nil {
		parts = append(parts, softNudge.ResponseText)
		involved = append(involved, capability.SentinelName)
		requiresFollowUp = true
		sess.Flag(softNudge.TriggerType)
	}

	final := strings.Join(parts, "\n\n")
	if final == "" {
		final = genericSafeResponse
	}

	now := time.Now().UTC()
	sess.Append(domain.RoleUser, req.Message, now)
	sess.Append(domain.RoleAssistant, final, now)

	o.recordOutcome(ctx, req, softNudge, final, involved)

	return &Result{
		FinalResponse:    final,
		InvolvedAgents:   involved,
		SafetyOverride:   false,
		SessionID:        req.SessionID,
		RequiresFollowUp: requiresFollowUp,
		Context:          req.Context,
	}, nil
}

func validate(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("orchestrator.Process: nil request: %w", domain.ErrValidation)
	case req.UserID == "":
		return fmt.Errorf("orchestrator.Process: user id required: %w", domain.ErrValidation)
	case req.SessionID == "":
		return fmt.Errorf("orchestrator.Process: session id required: %w", domain.ErrValidation)
	case strings.TrimSpace(req.Message) == "":
		return fmt.Errorf("orchestrator.Process: message required: %w", domain.ErrValidation)
	case len(req.Message) > maxMessageLen:
		return fmt.Errorf("orchestrator.Process: message exceeds %d bytes: %w", maxMessageLen, domain.ErrValidation)
	}
	return nil
}

func (o *Orchestrator) loadProfile(ctx context.Context, userID string) *domain.UserProfile {
	profile, err := o.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID).Msg("orchestrator: profile load failed, classifying without bias")
		}
		return nil
	}
	return profile
}

// override handles a high/critical verdict: the intervention response
// replaces all specialist output for the turn, the safety event is
// persisted even if the caller already disconnected, and the admin channel
// is notified when required.
func (o *Orchestrator) override(ctx context.Context, req *Request, sess *domain.InteractionSession, verdict *domain.SafetyVerdict, triggerContent string) *Result {
	now := time.Now().UTC()
	sess.Append(domain.RoleUser, req.Message, now)
	sess.Append(domain.RoleAssistant, verdict.ResponseText, now)
	sess.Flag(verdict.TriggerType)

	// A detected override must be persisted regardless of caller
	// cancellation.
	bg := context.WithoutCancel(ctx)

	event := &domain.SafetyAuditEvent{
		AuditEntry: domain.AuditEntry{
			EventType:   domain.EventSafetyIntervention,
			UserID:      req.UserID,
			AgentID:     capability.SentinelName,
			SessionID:   req.SessionID,
			Action:      "safety_override",
			Description: "safety intervention replaced specialist output",
		},
		TriggerType:          verdict.TriggerType,
		TriggerContent:       triggerContent,
		InterventionResponse: verdict.ResponseText,
		EscalationLevel:      verdict.EscalationLevel,
		FollowUpRequired:     true,
	}

	if verdict.AdminNotificationRequired && o.notifier != nil {
		if err := o.notifier.SafetyAlert(bg, event); err != nil {
			log.Error().Err(err).Str("user_id", req.UserID).Msg("orchestrator: admin safety alert failed")
		} else {
			event.AdminNotificationSent = true
		}
	}

	if _, err := o.audit.RecordSafetyEvent(bg, event); err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("orchestrator: safety event persistence failed on both paths")
	}

	return &Result{
		FinalResponse:    verdict.ResponseText,
		InvolvedAgents:   []string{capability.SentinelName},
		SafetyOverride:   true,
		SessionID:        req.SessionID,
		RequiresFollowUp: true,
		Context:          req.Context,
	}
}

type candidate struct {
	name string
	text string
}

// dispatch fans the request out to the selected capabilities with a
// bounded timeout each. A capability error or timeout is non-fatal: it is
// audited and excluded from composition.
func (o *Orchestrator) dispatch(ctx context.Context, req *Request, profile *domain.UserProfile, sess *domain.InteractionSession, caps []capability.SpecialistCapability) []candidate {
	results := make([]*candidate, len(caps))

	// Capabilities get a snapshot of the history; the live slice stays
	// owned by the session lock holder.
	history := append([]domain.SessionMessage(nil), sess.Messages...)

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range caps {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, o.capTimeout)
			defer cancel()

			resp, err := c.Handle(cctx, &capability.Request{
				UserID:  req.UserID,
				Message: req.Message,
				Profile: profile,
				History: history,
				Context: req.Context,
			})
			if err != nil {
				o.recordCapabilityFailure(ctx, req, c.Name(), err)
				return nil
			}
			if resp != nil && strings.TrimSpace(resp.Text) != "" {
				results[i] = &candidate{name: c.Name(), text: strings.TrimSpace(resp.Text)}
			}
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]candidate, 0, len(caps))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, *r)
		}
	}
	return ordered
}

func (o *Orchestrator) recordCapabilityFailure(ctx context.Context, req *Request, name string, err error) {
	timeout := errors.Is(err, context.DeadlineExceeded)
	log.Warn().Err(err).Str("capability", name).Bool("timeout", timeout).Msg("orchestrator: capability failed, excluded from composition")

	o.audit.RecordAsync(ctx, &domain.AuditEntry{
		EventType:   domain.EventSystemError,
		Severity:    domain.SeverityWarning,
		UserID:      req.UserID,
		AgentID:     name,
		SessionID:   req.SessionID,
		Action:      "capability_failure",
		Description: "specialist capability excluded from composition",
		Metadata: domain.AuditMetadata{
			Failure: &domain.FailureMetadata{
				Component: name,
				Error:     err.Error(),
				Timeout:   timeout,
			},
		},
	})
}

// recordOutcome writes exactly one terminal audit record for a
// non-override turn. When a soft safety flag was raised the record is a
// safety event and must complete before the request does; otherwise it is
// a standard entry written off the latency path.
func (o *Orchestrator) recordOutcome(ctx context.Context, req *Request, softNudge *domain.SafetyVerdict, final string, involved []string) {
	if softNudge != nil {
		event := &domain.SafetyAuditEvent{
			AuditEntry: domain.AuditEntry{
				EventType:   domain.EventSafetyIntervention,
				Severity:    domain.SeverityWarning,
				UserID:      req.UserID,
				AgentID:     capability.SentinelName,
				SessionID:   req.SessionID,
				Action:      "safety_soft_flag",
				Description: "soft safety nudge added to composed response",
				Metadata: domain.AuditMetadata{
					Interaction: &domain.InteractionMetadata{
						InvolvedAgents: involved,
						UserMessage:    req.Message,
						FinalResponse:  final,
						SoftFlag:       true,
					},
				},
			},
			TriggerType:          softNudge.TriggerType,
			TriggerContent:       req.Message,
			InterventionResponse: softNudge.ResponseText,
			EscalationLevel:      softNudge.EscalationLevel,
			FollowUpRequired:     true,
		}
		if _, err := o.audit.RecordSafetyEvent(context.WithoutCancel(ctx), event); err != nil {
			log.Error().Err(err).Str("session_id", req.SessionID).Msg("orchestrator: soft flag persistence failed")
		}
		return
	}

	o.audit.RecordAsync(ctx, &domain.AuditEntry{
		EventType:   domain.EventAgentInteraction,
		Severity:    domain.SeverityInfo,
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		Action:      "process_message",
		Description: "orchestrated turn completed",
		Metadata: domain.AuditMetadata{
			Interaction: &domain.InteractionMetadata{
				InvolvedAgents: involved,
				UserMessage:    req.Message,
				FinalResponse:  final,
			},
		},
	})
}
