package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IlyasuSeidu/forge-sub004/pkg/contracts"
	"github.com/IlyasuSeidu/forge-sub004/pkg/hasher"
)

// InMemory is a single-process reference implementation of Ledger, used
// by default in single-node mode and in tests.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[string]*contracts.Artifact
	byReqType map[string][]*contracts.Artifact // key: requestID+"/"+type
	clock     func() time.Time
}

// NewInMemory creates an empty in-memory Ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[string]*contracts.Artifact),
		byReqType: make(map[string][]*contracts.Artifact),
		clock:     time.Now,
	}
}

func reqTypeKey(requestID string, typ contracts.ArtifactType) string {
	return requestID + "/" + string(typ)
}

func (l *InMemory) PutDraft(ctx context.Context, requestID string, typ contracts.ArtifactType, content []byte, inputHashes map[string]string, producer, schemaVersion, producerRequestHash string) (*contracts.Artifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := reqTypeKey(requestID, typ)
	existing := l.byReqType[key]
	version := 1
	for _, a := range existing {
		if a.Status == contracts.StatusAwaitingApproval {
			return nil, contracts.NewError(contracts.KindProtocol, "ledger.PutDraft",
				"an artifact of this type is already awaiting_approval for this request")
		}
		if a.Version >= version {
			version = a.Version + 1
		}
	}

	contentHash := hasher.Hash(content)
	art := &contracts.Artifact{
		ID:                  uuid.NewString(),
		RequestID:           requestID,
		Producer:            producer,
		Type:                typ,
		Content:             content,
		ContentHash:         contentHash,
		InputHashes:         inputHashes,
		Status:              contracts.StatusAwaitingApproval,
		Version:             version,
		SchemaVersion:       schemaVersion,
		ProducerRequestHash: producerRequestHash,
		CreatedAt:           l.clock().UTC(),
	}

	l.byID[art.ID] = art
	l.byReqType[key] = append(l.byReqType[key], art)
	return art, nil
}

func (l *InMemory) Approve(ctx context.Context, artifactID, approver string) (*contracts.Artifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	art, ok := l.byID[artifactID]
	if !ok {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "artifact not found")
	}
	if art.Status == contracts.StatusApproved {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "artifact is already approved")
	}
	if art.Status != contracts.StatusAwaitingApproval {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Approve", "artifact is not awaiting_approval")
	}

	recomputed := hasher.Hash(art.Content)
	if recomputed != art.ContentHash {
		return nil, contracts.NewError(contracts.KindIntegrity, "ledger.Approve",
			"recomputed content hash does not match stored content_hash")
	}

	now := l.clock().UTC()
	art.Status = contracts.StatusApproved
	art.ApprovedBy = approver
	art.ApprovedAt = &now
	return art, nil
}

func (l *InMemory) Reject(ctx context.Context, artifactID, reason string) (*contracts.Artifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	art, ok := l.byID[artifactID]
	if !ok {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Reject", "artifact not found")
	}
	if art.Status == contracts.StatusApproved {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Reject", "cannot reject an approved artifact")
	}
	art.Status = contracts.StatusRejected
	return art, nil
}

func (l *InMemory) CurrentApproved(ctx context.Context, requestID string, typ contracts.ArtifactType) (*contracts.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, a := range l.byReqType[reqTypeKey(requestID, typ)] {
		if a.Status == contracts.StatusApproved {
			return a, nil
		}
	}
	return nil, nil
}

func (l *InMemory) FindByProducerRequestHash(ctx context.Context, requestID string, hash string) (*contracts.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, a := range l.byID {
		if a.RequestID != requestID || a.ProducerRequestHash != hash {
			continue
		}
		if a.Status == contracts.StatusAwaitingApproval || a.Status == contracts.StatusApproved {
			return a, nil
		}
	}
	return nil, nil
}

func (l *InMemory) VerifyChain(ctx context.Context, artifactID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	art, ok := l.byID[artifactID]
	if !ok {
		return contracts.NewError(contracts.KindProtocol, "ledger.VerifyChain", "artifact not found")
	}

	for role, wantHash := range art.InputHashes {
		found := false
		for _, candidate := range l.byID {
			if candidate.RequestID == art.RequestID &&
				candidate.Status == contracts.StatusApproved &&
				candidate.ContentHash == wantHash {
				found = true
				break
			}
		}
		if !found {
			return contracts.NewError(contracts.KindIntegrity, "ledger.VerifyChain",
				"no currently-approved artifact matches input_hashes role "+role)
		}
	}
	return nil
}

func (l *InMemory) Get(ctx context.Context, artifactID string) (*contracts.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	art, ok := l.byID[artifactID]
	if !ok {
		return nil, contracts.NewError(contracts.KindProtocol, "ledger.Get", "artifact not found")
	}
	return art, nil
}
