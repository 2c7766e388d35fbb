package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/vitracka/companion/internal/domain"
)

// hashChain maintains the running integrity hash over safety events. Each
// stored safety entry carries the hash of its predecessor, so any later
// mutation of a stored entry breaks every link after it.
type hashChain struct {
	mu   sync.Mutex
	last string
}

// link assigns PrevHash/EntryHash on the event under the chain lock.
func (h *hashChain) link(ev *domain.SafetyAuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev.PrevHash = h.last
	ev.EntryHash = chainHash(h.last, ev)
	h.last = ev.EntryHash
}

// chainHash computes SHA-256 over the previous hash and the canonical
// serialization of the event's immutable fields.
func chainHash(prev string, ev *domain.SafetyAuditEvent) string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		prev,
		ev.ID,
		ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		ev.UserID,
		ev.SessionID,
		ev.TriggerType,
		ev.EscalationLevel,
		ev.TriggerContent,
		ev.InterventionResponse,
		ev.Description,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks a window of safety events for tampering and reports
// the ID of the first event that fails verification. The events may arrive
// in any order: the chain is reconstructed from the PrevHash linkage
// itself, starting at the one event whose predecessor lies outside the
// window. Link order is the only order the chain guarantees — concurrent
// writers can link in a different order than their timestamps suggest, so
// storage order must never be trusted here.
func VerifyChain(events []*domain.SafetyAuditEvent) (broken bool, at string) {
	if len(events) == 0 {
		return false, ""
	}

	byPrev := make(map[string]*domain.SafetyAuditEvent, len(events))
	entryHashes := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, dup := byPrev[ev.PrevHash]; dup {
			return true, ev.ID.String()
		}
		byPrev[ev.PrevHash] = ev
		entryHashes[ev.EntryHash] = struct{}{}
	}

	// The head is the unique event whose predecessor is not in the window.
	var head *domain.SafetyAuditEvent
	for _, ev := range events {
		if _, internal := entryHashes[ev.PrevHash]; internal {
			continue
		}
		if head != nil {
			return true, ev.ID.String()
		}
		head = ev
	}
	if head == nil {
		// Every PrevHash resolves inside the window: a cycle.
		return true, events[0].ID.String()
	}

	reached := make(map[*domain.SafetyAuditEvent]bool, len(events))
	for ev := head; ev != nil; ev = byPrev[ev.EntryHash] {
		if reached[ev] {
			return true, ev.ID.String()
		}
		reached[ev] = true
		if chainHash(ev.PrevHash, ev) != ev.EntryHash {
			return true, ev.ID.String()
		}
	}

	// Anything the walk never reached hangs off a forged link.
	for _, ev := range events {
		if !reached[ev] {
			return true, ev.ID.String()
		}
	}
	return false, ""
}
