// Package capability defines the narrow interface specialist agents
// implement and the registry the orchestrator selects them from. The
// orchestrator depends only on SpecialistCapability; every domain
// (coaching, progress, nutrition, gamification) plugs in behind it.
package capability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/vitracka/companion/internal/domain"
)

// SentinelName is the agent name reported when the safety authority
// overrides all specialist output for a turn.
const SentinelName = "safety_sentinel"

// Capability names routed by intent classification.
const (
	NameCoach        = "coach"
	NameProgress     = "progress"
	NameNutrition    = "nutrition"
	NameGamification = "gamification"
)

// ErrUnknownCapability is returned when a requested capability is not
// registered.
var ErrUnknownCapability = errors.New("capability: unknown capability") //nolint:gochecknoglobals // sentinel error

// Request is the input handed to a specialist capability. The raw user
// message only reaches a capability after it passed the safety pre-check.
type Request struct {
	UserID  string
	Message string
	Profile *domain.UserProfile
	History []domain.SessionMessage
	Context map[string]any
}

// Response is a candidate answer from one capability. Every response is
// safety post-checked before it can reach the user.
type Response struct {
	Text string
}

// SpecialistCapability is the single contract all specialist agents
// implement.
type SpecialistCapability interface {
	Name() string
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// Registry holds the registered capabilities.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]SpecialistCapability
}

func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]SpecialistCapability)}
}

// Register adds a capability under its own name.
func (r *Registry) Register(c SpecialistCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[c.Name()] = c
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (SpecialistCapability, error) {
	r.mu.RLock()
	c, ok := r.capabilities[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("capability.Registry.Get(%q): %w", name, ErrUnknownCapability)
	}
	return c, nil
}

// Select resolves names to capabilities, preserving order and skipping
// unknown names.
func (r *Registry) Select(names []string) []SpecialistCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make([]SpecialistCapability, 0, len(names))
	for _, name := range names {
		if c, ok := r.capabilities[name]; ok {
			selected = append(selected, c)
		}
	}
	return selected
}

// Available returns registered capability names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(func(yield func(string) bool) {
		for name := range r.capabilities {
			if !yield(name) {
				return
			}
		}
	})
	sort.Strings(names)

	return names
}
