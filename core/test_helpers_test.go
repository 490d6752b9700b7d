package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

const (
	testOwner    = "0xAbC1230000000000000000000000000000000001"
	testReferrer = "0x00000000000000000000000000000000000000F2"
	testAdmin    = "0xAD00000000000000000000000000000000000001"
	testOutsider = "0x0000000000000000000000000000000000000bad"
)

func testAddress(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func testContent(name string) ContentRequest {
	return ContentRequest{
		StudentName: name,
		Degree:      "B.Sc CS",
		Institution: "EMU",
		IssueDate:   "2025-05-01",
	}
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	next  int
	err   error
	docs  []MetadataDocument
	delay time.Duration
}

func (p *fakePublisher) Publish(ctx context.Context, doc MetadataDocument) (PublishResult, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return PublishResult{}, p.err
	}
	p.next++
	p.docs = append(p.docs, doc)
	cid := fmt.Sprintf("bafytest%04d", p.next)
	return PublishResult{CID: cid, URI: "https://gateway.test/ipfs/" + cid}, nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.docs)
}

// fakeLedger simulates the certificate contract: mints assign sequential
// token ids, revokes burn them.
type fakeLedger struct {
	mu          sync.Mutex
	owner       string
	ownerErr    error
	ownerReads  int
	sendErr     error
	awaitErrs   []error
	revert      map[LedgerOperation]bool
	nextNonce   uint64
	nextToken   int
	sent        []LedgerCall
	txs         map[string]LedgerCall
	receipts    map[string]Receipt
	holders     map[string]string
	tokenOwners map[string]string
	paused      bool
}

func newFakeLedger(owner string) *fakeLedger {
	return &fakeLedger{
		owner:       owner,
		revert:      map[LedgerOperation]bool{},
		txs:         map[string]LedgerCall{},
		receipts:    map[string]Receipt{},
		holders:     map[string]string{},
		tokenOwners: map[string]string{},
	}
}

func (l *fakeLedger) ReadOwner(context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ownerReads++
	if l.ownerErr != nil {
		return "", l.ownerErr
	}
	return l.owner, nil
}

func (l *fakeLedger) setOwner(owner string) {
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
}

func (l *fakeLedger) Send(_ context.Context, call LedgerCall) (PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sendErr != nil {
		return PendingTx{}, l.sendErr
	}
	l.nextNonce++
	txHash := fmt.Sprintf("0x%064x", l.nextNonce)
	l.sent = append(l.sent, call)
	l.txs[txHash] = call
	return PendingTx{TxHash: txHash, Nonce: l.nextNonce, GasLimit: 120000}, nil
}

func (l *fakeLedger) AwaitReceipt(_ context.Context, txHash string) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.awaitErrs) > 0 {
		err := l.awaitErrs[0]
		l.awaitErrs = l.awaitErrs[1:]
		if err != nil {
			return Receipt{}, err
		}
	}
	if receipt, ok := l.receipts[txHash]; ok {
		return receipt, nil
	}
	call, ok := l.txs[txHash]
	if !ok {
		return Receipt{}, errors.New("fake ledger: unknown transaction")
	}
	receipt := Receipt{Operation: call.Operation, TxHash: txHash, Status: ReceiptStatusSuccess, BlockNumber: l.nextNonce, GasUsed: 90000}
	if l.revert[call.Operation] {
		receipt.Status = ReceiptStatusReverted
		l.receipts[txHash] = receipt
		return receipt, nil
	}
	switch call.Operation {
	case LedgerOpMintFor:
		l.nextToken++
		tokenID := strconv.Itoa(l.nextToken)
		owner := NormalizeAddress(call.Owner)
		l.holders[owner] = tokenID
		l.tokenOwners[tokenID] = owner
		receipt.TokenID = tokenID
	case LedgerOpRevoke:
		if owner, ok := l.tokenOwners[call.TokenID]; ok {
			delete(l.holders, owner)
			delete(l.tokenOwners, call.TokenID)
		}
	case LedgerOpPause:
		l.paused = true
	case LedgerOpUnpause:
		l.paused = false
	case LedgerOpTransferOwnership:
		l.owner = call.NewOwner
	}
	l.receipts[txHash] = receipt
	return receipt, nil
}

func (l *fakeLedger) HasCertificate(_ context.Context, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.holders[NormalizeAddress(owner)]
	return ok, nil
}

func (l *fakeLedger) OwnerOf(_ context.Context, tokenID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.tokenOwners[tokenID]
	if !ok {
		return "", NewNotFoundError("fake ledger: token does not exist", map[string]any{"token_id": tokenID})
	}
	return owner, nil
}

func (l *fakeLedger) sentCalls() []LedgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LedgerCall(nil), l.sent...)
}

func (l *fakeLedger) reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ownerReads
}

type failingSagaStore struct {
	err error
}

func (s failingSagaStore) Save(context.Context, Saga) error { return s.err }

func (s failingSagaStore) Get(context.Context, string) (Saga, error) { return Saga{}, s.err }

func (s failingSagaStore) ListOpen(context.Context, time.Time, int) ([]Saga, error) {
	return nil, s.err
}

// flakyCertificateStore fails the named operation once.
type flakyCertificateStore struct {
	*MemoryCertificateStore
	mu     sync.Mutex
	failOn map[string]error
}

func (s *flakyCertificateStore) fail(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.failOn[op]
	if !ok {
		return nil
	}
	delete(s.failOn, op)
	return err
}

func (s *flakyCertificateStore) UpsertContent(ctx context.Context, in UpsertContentInput) (Certificate, bool, error) {
	if err := s.fail("upsert_content"); err != nil {
		return Certificate{}, false, err
	}
	return s.MemoryCertificateStore.UpsertContent(ctx, in)
}

func (s *flakyCertificateStore) AppendReferral(ctx context.Context, owner string, referee string) (bool, error) {
	if err := s.fail("append_referral"); err != nil {
		return false, err
	}
	return s.MemoryCertificateStore.AppendReferral(ctx, owner, referee)
}

type testHarness struct {
	svc       *Service
	store     *MemoryCertificateStore
	sagas     *MemorySagaStore
	publisher *fakePublisher
	ledger    *fakeLedger
	metrics   *captureMetricsRecorder
	logger    *captureLogger
}

func newTestHarness(t *testing.T, cfg Config, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{
		store:     NewMemoryCertificateStore(),
		sagas:     NewMemorySagaStore(),
		publisher: &fakePublisher{},
		ledger:    newFakeLedger(testAdmin),
		metrics:   &captureMetricsRecorder{},
		logger:    newCaptureLogger(),
	}
	base := []Option{
		WithCertificateStore(h.store),
		WithSagaStore(h.sagas),
		WithPublisher(h.publisher),
		WithLedger(h.ledger),
		WithMetricsRecorder(h.metrics),
		WithLoggerProvider(stubLoggerProvider{logger: h.logger}),
		WithLogger(h.logger),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

// seedReferrals stores a certificate for owner with count referrals.
func (h *testHarness) seedReferrals(t *testing.T, owner string, count int) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.svc.Issue(ctx, IssueRequest{Owner: owner, Content: testContent("Seed")}); err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	for i := 0; i < count; i++ {
		if _, err := h.store.AppendReferral(ctx, owner, testAddress(9000+i)); err != nil {
			t.Fatalf("seed referral: %v", err)
		}
	}
}
