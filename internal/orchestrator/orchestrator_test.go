package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitracka/companion/internal/capability"
	"github.com/vitracka/companion/internal/domain"
	"github.com/vitracka/companion/internal/orchestrator"
	"github.com/vitracka/companion/internal/safety"
)

// --- mocks ---

// mockAudit records every write synchronously so tests can assert on the
// trail without timing games.
type mockAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	safety  []*domain.SafetyAuditEvent
}

func (m *mockAudit) Record(_ context.Context, entry *domain.AuditEntry) (*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *entry
	m.entries = append(m.entries, &stored)
	return &stored, nil
}

func (m *mockAudit) RecordAsync(ctx context.Context, entry *domain.AuditEntry) {
	_, _ = m.Record(ctx, entry)
}

func (m *mockAudit) RecordSafetyEvent(_ context.Context, event *domain.SafetyAuditEvent) (*domain.SafetyAuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *event
	m.safety = append(m.safety, &stored)
	return &stored, nil
}

func (m *mockAudit) safetyEvents() []*domain.SafetyAuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SafetyAuditEvent(nil), m.safety...)
}

func (m *mockAudit) entriesByAction(action string) []*domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// mockProfiles returns a fixed profile, or ErrNotFound when nil.
type mockProfiles struct {
	profile *domain.UserProfile
}

func (m *mockProfiles) Get(_ context.Context, _ string) (*domain.UserProfile, error) {
	if m.profile == nil {
		return nil, domain.ErrNotFound
	}
	return m.profile, nil
}

// mockNotifier records admin safety alerts.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []*domain.SafetyAuditEvent
	err    error
}

func (m *mockNotifier) SafetyAlert(_ context.Context, event *domain.SafetyAuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, event)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// stubCap is a scriptable specialist capability.
type stubCap struct {
	name   string
	reply  string
	err    error
	delay  time.Duration
	mu     sync.Mutex
	called int
}

func (s *stubCap) Name() string { return s.name }

func (s *stubCap) Handle(ctx context.Context, _ *capability.Request) (*capability.Response, error) {
	s.mu.Lock()
	s.called++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &capability.Response{Text: s.reply}, nil
}

func (s *stubCap) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.called
}

// failingClassifier always errors, exercising the fail-closed path.
type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, *domain.UserProfile) (*domain.SafetyVerdict, error) {
	return nil, errors.New("classifier unavailable")
}

// --- helpers ---

type fixture struct {
	orch     *orchestrator.Orchestrator
	audit    *mockAudit
	notifier *mockNotifier
	sessions *orchestrator.SessionRegistry
	coach    *stubCap
}

func newFixture(t *testing.T, caps ...capability.SpecialistCapability) *fixture {
	t.Helper()

	auditLog := &mockAudit{}
	notifier := &mockNotifier{}
	sessions := orchestrator.NewSessionRegistry(30 * time.Minute)
	limiter := orchestrator.NewUserLimiter(1000, 1000)

	registry := capability.NewRegistry()
	coach := &stubCap{name: capability.NameCoach, reply: "You're doing great, keep logging those meals."}
	registry.Register(coach)
	for _, c := range caps {
		registry.Register(c)
	}

	orch := orchestrator.New(
		safety.NewClassifier(),
		auditLog,
		&mockProfiles{},
		registry,
		sessions,
		limiter,
		2*time.Second,
		orchestrator.WithAdminNotifier(notifier),
	)

	return &fixture{orch: orch, audit: auditLog, notifier: notifier, sessions: sessions, coach: coach}
}

// --- tests ---

func TestProcess_NormalTurn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	result, err := f.orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "how did my week go?",
	})
	require.NoError(t, err)

	assert.Equal(t, f.coach.reply, result.FinalResponse)
	assert.Equal(t, []string{capability.NameCoach}, result.InvolvedAgents)
	assert.False(t, result.SafetyOverride)
	assert.False(t, result.RequiresFollowUp)
	assert.Equal(t, "s1", result.SessionID)

	// One terminal interaction record, no safety events.
	records := f.audit.entriesByAction("process_message")
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventAgentInteraction, records[0].EventType)
	assert.Empty(t, f.audit.safetyEvents())

	// Both turns landed in the session history.
	sess := f.sessions.Peek("s1")
	require.NotNil(t, sess)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, domain.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, sess.Messages[1].Role)
}

func TestProcess_SafetyOverride(t *testing.T) {
	t.Parallel()

	specialist := &stubCap{name: capability.NameProgress, reply: "your weight trend looks fine"}
	f := newFixture(t, specialist)

	result, err := f.orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "I want to hurt myself tonight",
	})
	require.NoError(t, err)

	assert.True(t, result.SafetyOverride)
	assert.True(t, result.RequiresFollowUp)
	assert.Equal(t, []string{capability.SentinelName}, result.InvolvedAgents)
	assert.Contains(t, result.FinalResponse, "988")

	// No specialist ever saw the message.
	assert.Zero(t, f.coach.calls())
	assert.Zero(t, specialist.calls())

	// The override was persisted and the admin channel was notified.
	events := f.audit.safetyEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "safety_override", events[0].Action)
	assert.Equal(t, domain.TriggerSelfHarm, events[0].TriggerType)
	assert.True(t, events[0].FollowUpRequired)
	assert.True(t, events[0].AdminNotificationSent)
	assert.Equal(t, 1, f.notifier.count())

	// The intervention still lands in the session history.
	sess := f.sessions.Peek("s1")
	require.NotNil(t, sess)
	assert.Contains(t, sess.SafetyFlags, domain.TriggerSelfHarm)
}

func TestProcess_SoftNudgeComposed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	result, err := f.orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "feeling pretty hopeless about all of this",
	})
	require.NoError(t, err)

	// Specialist output and the nudge are both present.
	assert.False(t, result.SafetyOverride)
	assert.True(t, result.RequiresFollowUp)
	assert.Contains(t, result.FinalResponse, f.coach.reply)
	assert.Contains(t, result.InvolvedAgents, capability.NameCoach)
	assert.Contains(t, result.InvolvedAgents, capability.SentinelName)
	assert.Equal(t, 1, f.coach.calls())

	// The soft flag is a safety event, not a plain interaction record.
	events := f.audit.safetyEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "safety_soft_flag", events[0].Action)
	assert.Equal(t, domain.TriggerDepression, events[0].TriggerType)
	assert.Empty(t, f.audit.entriesByAction("process_message"))
}

func TestProcess_PostCheckCatchesSpecialistOutput(t *testing.T) {
	t.Parallel()

	// A specialist produces unsafe advice; the post-check must replace it.
	rogue := &stubCap{name: capability.NameNutrition, reply: "you could just starve yourself for a few days"}
	f := newFixture(t, rogue)
	f.coach.reply = ""

	result, err := f.orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "what should I eat this week?",
	})
	require.NoError(t, err)

	assert.True(t, result.SafetyOverride)
	assert.Equal(t, []string{capability.SentinelName}, result.InvolvedAgents)
	assert.NotContains(t, result.FinalResponse, "starve")

	events := f.audit.safetyEvents()
	require.Len(t, events, 1)
	assert.Equal(t, domain.TriggerEatingDisorder, events[0].TriggerType)
	assert.Contains(t, events[0].TriggerContent, "starve yourself")
}

func TestProcess_CapabilityFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	broken := &stubCap{name: capability.NameProgress, err: errors.New("backend exploded")}
	f := newFixture(t, broken)

	result, err := f.orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "how is my weight trend?",
	})
	require.NoError(t, err)

	// The healthy capability still answers.
	assert.Equal(t, f.coach.reply, result.FinalResponse)
	assert.Equal(t, []string{capability.NameCoach}, result.InvolvedAgents)

	// The failure is audited as a system error.
	failures := f.audit.entriesByAction("capability_failure")
	require.Len(t, failures, 1)
	assert.Equal(t, domain.EventSystemError, failures[0].EventType)
	require.NotNil(t, failures[0].Metadata.Failure)
	assert.Equal(t, capability.NameProgress, failures[0].Metadata.Failure.Component)
	assert.False(t, failures[0].Metadata.Failure.Timeout)
}

func TestProcess_CapabilityTimeout(t *testing.T) {
	t.Parallel()

	auditLog := &mockAudit{}
	sessions := orchestrator.NewSessionRegistry(30 * time.Minute)
	registry := capability.NewRegistry()
	slow := &stubCap{name: capability.NameCoach, reply: "too late", delay: time.Second}
	registry.Register(slow)

	orch := orchestrator.New(
		safety.NewClassifier(),
		auditLog,
		&mockProfiles{},
		registry,
		sessions,
		orchestrator.NewUserLimiter(1000, 1000),
		20*time.Millisecond,
	)

	result, err := orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "hello there",
	})
	require.NoError(t, err)

	// All specialists timed out; the user still gets a safe response.
	assert.NotEmpty(t, result.FinalResponse)
	assert.Empty(t, result.InvolvedAgents)

	failures := auditLog.entriesByAction("capability_failure")
	require.Len(t, failures, 1)
	assert.True(t, failures[0].Metadata.Failure.Timeout)
}

func TestProcess_FailClosedClassifier(t *testing.T) {
	t.Parallel()

	auditLog := &mockAudit{}
	sessions := orchestrator.NewSessionRegistry(30 * time.Minute)
	registry := capability.NewRegistry()
	coach := &stubCap{name: capability.NameCoach, reply: "hi"}
	registry.Register(coach)

	orch := orchestrator.New(
		failingClassifier{},
		auditLog,
		&mockProfiles{},
		registry,
		sessions,
		orchestrator.NewUserLimiter(1000, 1000),
		time.Second,
	)

	result, err := orch.Process(t.Context(), &orchestrator.Request{
		UserID:    "u1",
		SessionID: "s1",
		Message:   "perfectly ordinary message",
	})
	require.NoError(t, err)

	// Classifier down means intervention, never silent pass-through.
	assert.True(t, result.SafetyOverride)
	assert.Zero(t, coach.calls())
	require.Len(t, auditLog.safetyEvents(), 1)
}

func TestProcess_RateLimited(t *testing.T) {
	t.Parallel()

	auditLog := &mockAudit{}
	sessions := orchestrator.NewSessionRegistry(30 * time.Minute)
	registry := capability.NewRegistry()
	registry.Register(&stubCap{name: capability.NameCoach, reply: "hi"})

	orch := orchestrator.New(
		safety.NewClassifier(),
		auditLog,
		&mockProfiles{},
		registry,
		sessions,
		orchestrator.NewUserLimiter(0.001, 1),
		time.Second,
	)

	req := &orchestrator.Request{UserID: "u1", SessionID: "s1", Message: "hello"}

	_, err := orch.Process(t.Context(), req)
	require.NoError(t, err)

	_, err = orch.Process(t.Context(), req)
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestProcess_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name string
		req  *orchestrator.Request
	}{
		{name: "missing user", req: &orchestrator.Request{SessionID: "s1", Message: "hi"}},
		{name: "missing session", req: &orchestrator.Request{UserID: "u1", Message: "hi"}},
		{name: "blank message", req: &orchestrator.Request{UserID: "u1", SessionID: "s1", Message: "   "}},
		{name: "oversized message", req: &orchestrator.Request{UserID: "u1", SessionID: "s1", Message: string(make([]byte, 10001))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := f.orch.Process(t.Context(), tt.req)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestProcess_SerializesSameSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Process(t.Context(), &orchestrator.Request{
				UserID:    "u1",
				SessionID: "shared",
				Message:   "quick check in",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every turn appended exactly two messages; serialization means no
	// interleaved or lost writes.
	sess := f.sessions.Peek("shared")
	require.NotNil(t, sess)
	assert.Len(t, sess.Messages, turns*2)
}
