package domain

import "time"

// Message roles within an interaction session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SessionMessage is one turn in an interaction session's history.
type SessionMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// InteractionSession is the per-conversation state owned by the
// orchestrator. Created on the first message for a session ID, evicted
// after an inactivity timeout. All mutations are serialized by the
// orchestrator's session registry.
type InteractionSession struct {
	ID              string
	UserID          string
	Messages        []SessionMessage
	LastInteraction time.Time
	SafetyFlags     []TriggerType
	CreatedAt       time.Time
}

// Append records a turn and advances the interaction clock.
func (s *InteractionSession) Append(role, content string, at time.Time) {
	s.Messages = append(s.Messages, SessionMessage{Role: role, Content: content, Timestamp: at})
	s.LastInteraction = at
}

// Flag accumulates a safety trigger on the session. TriggerNone is ignored.
func (s *InteractionSession) Flag(t TriggerType) {
	if t == TriggerNone {
		return
	}
	s.SafetyFlags = append(s.SafetyFlags, t)
}
