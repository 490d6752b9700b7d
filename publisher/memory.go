package publisher

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/goliatone/go-certledger/core"
)

const defaultGatewayURL = "https://gateway.pinata.cloud"

// MemoryPublisher is a local content-addressed store. Identical documents get
// identical CIDs.
type MemoryPublisher struct {
	mu      sync.RWMutex
	gateway string
	blobs   map[string][]byte
	err     error
}

func NewMemoryPublisher(gateway string) *MemoryPublisher {
	if gateway == "" {
		gateway = defaultGatewayURL
	}
	return &MemoryPublisher{gateway: gateway, blobs: map[string][]byte{}}
}

// FailWith makes every subsequent Publish return err. Pass nil to recover.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MemoryPublisher) Publish(ctx context.Context, doc core.MetadataDocument) (core.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return core.PublishResult{}, core.NewUploadError(err, map[string]any{"owner": doc.Owner})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return core.PublishResult{}, core.NewUploadError(err, map[string]any{"owner": doc.Owner})
	}
	computed, err := ComputeCID(data)
	if err != nil {
		return core.PublishResult{}, core.NewUploadError(err, map[string]any{"owner": doc.Owner})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return core.PublishResult{}, core.NewUploadError(p.err, map[string]any{"owner": doc.Owner})
	}
	contentID := computed.String()
	p.blobs[contentID] = data
	return core.PublishResult{CID: contentID, URI: GatewayURI(p.gateway, contentID)}, nil
}

// Get returns the pinned blob for contentID.
func (p *MemoryPublisher) Get(contentID string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.blobs[contentID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (p *MemoryPublisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.blobs)
}

var _ core.Publisher = (*MemoryPublisher)(nil)
