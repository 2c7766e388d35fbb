// Package notify enforces the notification delivery policy: one immutable
// guarantee (safety messages are never suppressed) on top of the user's
// mutable preferences.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitracka/companion/internal/domain"
)

// Block reasons reported on suppressed deliveries.
const (
	ReasonPaused       = "paused"
	ReasonOptedOut     = "opted out"
	ReasonTypeDisabled = "type disabled"
)

// Deliverer sends a notification over one delivery method.
type Deliverer interface {
	Method() domain.DeliveryMethod
	Deliver(ctx context.Context, userID, content string) error
}

// auditRecorder is the slice of the audit log the policy writes delivery
// outcomes through.
type auditRecorder interface {
	RecordAsync(ctx context.Context, entry *domain.AuditEntry)
}

// DeliveryRequest asks the policy to deliver one notification.
type DeliveryRequest struct {
	UserID   string
	Type     domain.NotificationType
	Content  string
	Priority string
}

// DeliveryResult reports what the policy decided.
type DeliveryResult struct {
	Delivered               bool
	Blocked                 bool
	BlockReason             string
	Methods                 []domain.DeliveryMethod
	RespectsUserPreferences bool
}

// Policy decides whether and how a notification is delivered.
type Policy struct {
	settings   domain.NotificationSettingsStore
	deliverers map[domain.DeliveryMethod]Deliverer
	audit      auditRecorder
	now        func() time.Time
}

// NewPolicy creates the delivery policy over the given settings store and
// deliverers. audit may be nil in tests.
func NewPolicy(settings domain.NotificationSettingsStore, deliverers []Deliverer, audit auditRecorder) *Policy {
	byMethod := make(map[domain.DeliveryMethod]Deliverer, len(deliverers))
	for _, d := range deliverers {
		byMethod[d.Method()] = d
	}
	return &Policy{
		settings:   settings,
		deliverers: byMethod,
		audit:      audit,
		now:        time.Now,
	}
}

// Deliver applies the policy rules in order. Safety notifications are
// delivered through every enabled method regardless of pause or opt-out
// state; blocking them is impossible by construction.
func (p *Policy) Deliver(ctx context.Context, req *DeliveryRequest) (*DeliveryResult, error) {
	if req.UserID == "" || req.Type == "" {
		return nil, fmt.Errorf("notify.Policy.Deliver: %w", domain.ErrValidation)
	}

	settings, err := p.loadSettings(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("notify.Policy.Deliver: %w", err)
	}

	if req.Type == domain.NotificationSafety {
		result := p.send(ctx, req, p.safetyMethods(settings))
		result.RespectsUserPreferences = true
		p.recordDelivery(ctx, req, result)
		return result, nil
	}

	if settings.Pause.Active(p.now()) {
		result := blocked(ReasonPaused)
		p.recordDelivery(ctx, req, result)
		return result, nil
	}

	if settings.IsOptedOut(req.Type) {
		result := blocked(ReasonOptedOut)
		p.recordDelivery(ctx, req, result)
		return result, nil
	}

	if enabled, ok := settings.EnabledTypes[req.Type]; ok && !enabled {
		result := blocked(ReasonTypeDisabled)
		p.recordDelivery(ctx, req, result)
		return result, nil
	}

	result := p.send(ctx, req, settings.EnabledMethods())
	result.RespectsUserPreferences = true
	p.recordDelivery(ctx, req, result)
	return result, nil
}

// safetyMethods returns the user's enabled methods, falling back to every
// registered deliverer when the user has switched everything off - a
// safety message must still go out somewhere.
func (p *Policy) safetyMethods(settings *domain.NotificationSettings) []domain.DeliveryMethod {
	methods := settings.EnabledMethods()
	if len(methods) > 0 {
		return methods
	}
	all := make([]domain.DeliveryMethod, 0, len(p.deliverers))
	for m := range p.deliverers {
		all = append(all, m)
	}
	return all
}

func (p *Policy) send(ctx context.Context, req *DeliveryRequest, methods []domain.DeliveryMethod) *DeliveryResult {
	result := &DeliveryResult{}
	for _, m := range methods {
		d, ok := p.deliverers[m]
		if !ok {
			continue
		}
		if err := d.Deliver(ctx, req.UserID, req.Content); err != nil {
			log.Error().Err(err).Str("method", string(m)).Str("user_id", req.UserID).Msg("notify: delivery failed")
			continue
		}
		result.Delivered = true
		result.Methods = append(result.Methods, m)
	}
	return result
}

func blocked(reason string) *DeliveryResult {
	return &DeliveryResult{
		Blocked:                 true,
		BlockReason:             reason,
		RespectsUserPreferences: true,
	}
}

// OptOut removes a notification type for the user. Opting out of safety is
// rejected with a domain error: the guarantee is enforced here at the API
// boundary, not by UI convention.
func (p *Policy) OptOut(ctx context.Context, userID string, t domain.NotificationType) error {
	if t == domain.NotificationSafety {
		return fmt.Errorf("notify.Policy.OptOut: %w", domain.ErrSafetyOptOut)
	}

	settings, err := p.loadSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify.Policy.OptOut: %w", err)
	}
	if settings.IsOptedOut(t) {
		return nil
	}

	settings.OptedOutTypes = append(settings.OptedOutTypes, t)
	settings.Normalize()
	settings.UpdatedAt = p.now().UTC()
	if err := p.settings.Set(ctx, settings); err != nil {
		return fmt.Errorf("notify.Policy.OptOut: %w", err)
	}
	return nil
}

// OptIn removes a previous opt-out for the type.
func (p *Policy) OptIn(ctx context.Context, userID string, t domain.NotificationType) error {
	settings, err := p.loadSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify.Policy.OptIn: %w", err)
	}

	kept := settings.OptedOutTypes[:0]
	for _, opted := range settings.OptedOutTypes {
		if opted != t {
			kept = append(kept, opted)
		}
	}
	settings.OptedOutTypes = kept
	settings.Normalize()
	settings.UpdatedAt = p.now().UTC()
	if err := p.settings.Set(ctx, settings); err != nil {
		return fmt.Errorf("notify.Policy.OptIn: %w", err)
	}
	return nil
}

// Settings returns the user's normalized settings, defaulting new users.
func (p *Policy) Settings(ctx context.Context, userID string) (*domain.NotificationSettings, error) {
	settings, err := p.loadSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("notify.Policy.Settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings writes user preferences with the safety invariants
// re-applied, whatever the caller supplied.
func (p *Policy) UpdateSettings(ctx context.Context, settings *domain.NotificationSettings) error {
	if settings.UserID == "" {
		return fmt.Errorf("notify.Policy.UpdateSettings: %w", domain.ErrValidation)
	}
	settings.Normalize()
	settings.UpdatedAt = p.now().UTC()
	if err := p.settings.Set(ctx, settings); err != nil {
		return fmt.Errorf("notify.Policy.UpdateSettings: %w", err)
	}
	return nil
}

func (p *Policy) loadSettings(ctx context.Context, userID string) (*domain.NotificationSettings, error) {
	settings, err := p.settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DefaultNotificationSettings(userID), nil
		}
		return nil, err
	}
	settings.Normalize()
	return settings, nil
}

func (p *Policy) recordDelivery(ctx context.Context, req *DeliveryRequest, result *DeliveryResult) {
	if p.audit == nil {
		return
	}
	methods := make([]string, 0, len(result.Methods))
	for _, m := range result.Methods {
		methods = append(methods, string(m))
	}
	p.audit.RecordAsync(ctx, &domain.AuditEntry{
		EventType:   domain.EventNotificationDelivery,
		Severity:    domain.SeverityInfo,
		UserID:      req.UserID,
		Action:      "notification_delivery",
		Description: "notification delivery decision",
		Metadata: domain.AuditMetadata{
			Delivery: &domain.DeliveryMetadata{
				NotificationType: string(req.Type),
				Methods:          methods,
				Blocked:          result.Blocked,
				BlockReason:      result.BlockReason,
			},
		},
	})
}
