// Package eventlog provides the Event Log (C2): an append-only,
// monotonically ordered audit record of everything the core does.
package eventlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// Log is the Event Log interface consumed by the Conductor, Agent Host,
// Repair sub-loop, and Completion Auditor.
type Log interface {
	// Append assigns the next monotonic Sequence for executionID, stamps
	// an id, and stores the event. Ordering per execution is strict (I5).
	Append(ctx context.Context, executionID string, eventType contracts.EventType, tag, message string) (*contracts.Event, error)

	// Since returns events for executionID with Sequence > after, ordered.
	Since(ctx context.Context, executionID string, after uint64) ([]*contracts.Event, error)

	// LastSequence returns the highest committed sequence for executionID.
	LastSequence(executionID string) uint64
}

// InMemory is a hash-chained, in-process reference implementation.
type InMemory struct {
	mu       sync.RWMutex
	byExec   map[string][]*contracts.Event
	lastSeq  map[string]uint64
	chainTip map[string]string
}

// NewInMemory creates an empty in-memory event log.
func NewInMemory() *InMemory {
	return &InMemory{
		byExec:   make(map[string][]*contracts.Event),
		lastSeq:  make(map[string]uint64),
		chainTip: make(map[string]string),
	}
}

func (l *InMemory) Append(ctx context.Context, executionID string, eventType contracts.EventType, tag, message string) (*contracts.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastSeq[executionID]++
	seq := l.lastSeq[executionID]

	ev := &contracts.Event{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		Type:        eventType,
		Tag:         tag,
		Message:     message,
		Sequence:    seq,
	}

	// Chain the event into the execution's running hash so tampering with
	// a past event is detectable even though it carries no content_hash
	// of its own.
	prev := l.chainTip[executionID]
	chainHash, err := hasher.CanonicalHash(map[string]interface{}{
		"event_id":     ev.ID,
		"sequence":     ev.Sequence,
		"type":         string(ev.Type),
		"tag":          ev.Tag,
		"message":      ev.Message,
		"previous":     prev,
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: chain hash: %w", err)
	}
	l.chainTip[executionID] = chainHash

	l.byExec[executionID] = append(l.byExec[executionID], ev)
	return ev, nil
}

func (l *InMemory) Since(ctx context.Context, executionID string, after uint64) ([]*contracts.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.byExec[executionID]
	out := make([]*contracts.Event, 0, len(all))
	for _, ev := range all {
		if ev.Sequence > after {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *InMemory) LastSequence(executionID string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastSeq[executionID]
}
