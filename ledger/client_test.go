package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goliatone/go-certledger/core"
)

const (
	testKey      = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testContract = "0x00000000000000000000000000000000000C0DE1"
	testOwner    = "0xAbC1230000000000000000000000000000000001"
)

type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) revertError {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("string type: %v", err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack revert: %v", err)
	}
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return revertError{data: hexutil.Encode(append(selector, packed...))}
}

type fakeBackend struct {
	t   *testing.T
	abi abi.ABI

	mu           sync.Mutex
	chainID      *big.Int
	owner        common.Address
	holders      map[common.Address]bool
	tokenOwners  map[string]common.Address
	callErr      error
	estimate     uint64
	estimateErr  error
	nonce        uint64
	sendErr      error
	sent         []*types.Transaction
	receipts     map[common.Hash]*types.Receipt
	pollsToMine  int
	polls        map[common.Hash]int
	mintTokenID  int64
	revertOnMine bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := ContractABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return &fakeBackend{
		t:           t,
		abi:         parsed,
		chainID:     big.NewInt(11155111),
		owner:       common.HexToAddress("0xAD00000000000000000000000000000000000001"),
		holders:     map[common.Address]bool{},
		tokenOwners: map[string]common.Address{},
		estimate:    100000,
		receipts:    map[common.Hash]*types.Receipt{},
		polls:       map[common.Hash]int{},
		mintTokenID: 7,
	}
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.callErr != nil {
		return nil, b.callErr
	}
	method, err := b.abi.MethodById(call.Data[:4])
	if err != nil {
		b.t.Fatalf("unknown selector: %v", err)
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		b.t.Fatalf("unpack %s args: %v", method.Name, err)
	}
	switch method.Name {
	case "owner":
		return method.Outputs.Pack(b.owner)
	case "hasCertificate":
		return method.Outputs.Pack(b.holders[args[0].(common.Address)])
	case "ownerOf":
		holder, ok := b.tokenOwners[args[0].(*big.Int).String()]
		if !ok {
			return nil, encodeRevert(b.t, "ERC721: invalid token ID")
		}
		return method.Outputs.Pack(holder)
	default:
		return nil, nil
	}
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimate, b.estimateErr
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	b.nonce++

	status := types.ReceiptStatusSuccessful
	if b.revertOnMine {
		status = types.ReceiptStatusFailed
	}
	receipt := &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas() / 2,
		BlockNumber: big.NewInt(42),
	}
	method, _ := b.abi.MethodById(tx.Data()[:4])
	if method != nil && method.Name == "mintFor" && status == types.ReceiptStatusSuccessful {
		args, _ := method.Inputs.Unpack(tx.Data()[4:])
		to := args[0].(common.Address)
		receipt.Logs = []*types.Log{{
			Address: *tx.To(),
			Topics: []common.Hash{
				b.abi.Events["Transfer"].ID,
				{},
				common.BytesToHash(to.Bytes()),
				common.BigToHash(big.NewInt(b.mintTokenID)),
			},
		}}
	}
	b.receipts[tx.Hash()] = receipt
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls[hash]++
	receipt, ok := b.receipts[hash]
	if !ok || b.polls[hash] <= b.pollsToMine {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func newTestClient(t *testing.T, backend *fakeBackend, cfg core.LedgerConfig) *Client {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.ConfirmationTimeout == 0 {
		cfg.ConfirmationTimeout = time.Second
	}
	client, err := NewClient(backend, Config{
		ContractAddress: testContract,
		PrivateKey:      "0x" + testKey,
		LedgerConfig:    cfg,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClient_RejectsLowGasMultiplier(t *testing.T) {
	_, err := NewClient(newFakeBackend(t), Config{
		ContractAddress: testContract,
		LedgerConfig:    core.LedgerConfig{GasMultiplier: 1.05},
	})
	if err == nil {
		t.Fatalf("expected multiplier below 1.1 to be rejected")
	}
}

func TestNewClient_RejectsInvalidContract(t *testing.T) {
	if _, err := NewClient(newFakeBackend(t), Config{ContractAddress: "nope"}); err == nil {
		t.Fatalf("expected invalid contract error")
	}
}

func TestApplyGasMultiplier(t *testing.T) {
	cases := []struct {
		estimate   uint64
		multiplier float64
		want       uint64
	}{
		{estimate: 100000, multiplier: 1.2, want: 120000},
		{estimate: 100000, multiplier: 1.1, want: 110000},
		{estimate: 21001, multiplier: 1.2, want: 25202},
		{estimate: 100000, multiplier: 1.0, want: 110000},
	}
	for _, tc := range cases {
		if got := ApplyGasMultiplier(tc.estimate, tc.multiplier); got != tc.want {
			t.Fatalf("ApplyGasMultiplier(%d, %.2f) = %d, want %d", tc.estimate, tc.multiplier, got, tc.want)
		}
	}
}

func TestClient_ReadOwnerIsLowercase(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend, core.LedgerConfig{})

	owner, err := client.ReadOwner(context.Background())
	if err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner != "0xad00000000000000000000000000000000000001" {
		t.Fatalf("unexpected owner %q", owner)
	}

	backend.callErr = errors.New("dial tcp: connection refused")
	if _, err := client.ReadOwner(context.Background()); !core.HasTextCode(err, core.ErrorServiceUnavailable) {
		t.Fatalf("expected service unavailable, got %v", err)
	}
}

func TestClient_SubmitMintAppliesBufferAndParsesToken(t *testing.T) {
	backend := newFakeBackend(t)
	backend.pollsToMine = 2
	client := newTestClient(t, backend, core.LedgerConfig{GasMultiplier: 1.2})

	receipt, err := client.Submit(context.Background(), core.MintForCall(testOwner, "bafycid", ""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != core.ReceiptStatusSuccess || receipt.TokenID != "7" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.Operation != core.LedgerOpMintFor || receipt.BlockNumber != 42 {
		t.Fatalf("unexpected receipt metadata %+v", receipt)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Gas() != 120000 {
		t.Fatalf("expected buffered gas limit 120000, got %d", tx.Gas())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if core.NormalizeAddress(sender.Hex()) != client.From() {
		t.Fatalf("expected tx signed by engine wallet")
	}
	method, _ := backend.abi.MethodById(tx.Data()[:4])
	if method.Name != "mintFor" {
		t.Fatalf("expected mintFor, got %s", method.Name)
	}
	args, _ := method.Inputs.Unpack(tx.Data()[4:])
	if args[2].(common.Address) != (common.Address{}) {
		t.Fatalf("expected zero referrer, got %s", args[2])
	}
}

func TestClient_SendRevertSurfacesReason(t *testing.T) {
	backend := newFakeBackend(t)
	backend.callErr = encodeRevert(t, "already holds certificate")
	client := newTestClient(t, backend, core.LedgerConfig{})

	_, err := client.Send(context.Background(), core.MintForCall(testOwner, "bafycid", ""))
	if !core.HasTextCode(err, core.ErrorLedgerEstimation) {
		t.Fatalf("expected estimation error, got %v", err)
	}
	mapped := core.MapError(err)
	if mapped.Metadata["revert_reason"] != "already holds certificate" {
		t.Fatalf("expected decoded revert reason, got %#v", mapped.Metadata["revert_reason"])
	}
	if len(backend.sent) != 0 {
		t.Fatalf("expected nothing broadcast after failed simulation")
	}
}

func TestClient_SendFailureIsSubmissionError(t *testing.T) {
	backend := newFakeBackend(t)
	backend.sendErr = errors.New("nonce too low")
	client := newTestClient(t, backend, core.LedgerConfig{})

	_, err := client.Send(context.Background(), core.PauseCall())
	if !core.HasTextCode(err, core.ErrorLedgerSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestClient_ReadOnlyClientCannotSend(t *testing.T) {
	client, err := NewClient(newFakeBackend(t), Config{ContractAddress: testContract})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Send(context.Background(), core.PauseCall()); !core.HasTextCode(err, core.ErrorLedgerSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestClient_AwaitReceiptTimesOutWithTxHash(t *testing.T) {
	backend := newFakeBackend(t)
	backend.pollsToMine = 1 << 20
	client := newTestClient(t, backend, core.LedgerConfig{ConfirmationTimeout: 20 * time.Millisecond})

	pending, err := client.Send(context.Background(), core.UnpauseCall())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	_, err = client.AwaitReceipt(context.Background(), pending.TxHash)
	if !core.IsConfirmationPending(err) {
		t.Fatalf("expected confirmation pending, got %v", err)
	}
	if core.TxHashFromError(err) != pending.TxHash {
		t.Fatalf("expected tx hash %s on error, got %s", pending.TxHash, core.TxHashFromError(err))
	}

	backend.mu.Lock()
	backend.pollsToMine = 0
	backend.mu.Unlock()
	receipt, err := client.AwaitReceipt(context.Background(), pending.TxHash)
	if err != nil {
		t.Fatalf("re-poll: %v", err)
	}
	if receipt.TxHash != pending.TxHash {
		t.Fatalf("expected same tx hash on re-poll")
	}
}

func TestClient_SubmitRevertedReceipt(t *testing.T) {
	backend := newFakeBackend(t)
	backend.revertOnMine = true
	client := newTestClient(t, backend, core.LedgerConfig{})

	receipt, err := client.Submit(context.Background(), core.RevokeCall("3"))
	if !core.HasTextCode(err, core.ErrorLedgerSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if receipt.Status != core.ReceiptStatusReverted {
		t.Fatalf("expected reverted receipt, got %+v", receipt)
	}
	if core.MapError(err).Metadata["reverted"] != true {
		t.Fatalf("expected reverted metadata")
	}
}

func TestClient_OwnerOfAndHasCertificate(t *testing.T) {
	backend := newFakeBackend(t)
	holder := common.HexToAddress(testOwner)
	backend.tokenOwners["5"] = holder
	backend.holders[holder] = true
	client := newTestClient(t, backend, core.LedgerConfig{})

	owner, err := client.OwnerOf(context.Background(), "5")
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != core.NormalizeAddress(testOwner) {
		t.Fatalf("unexpected owner %q", owner)
	}
	if _, err := client.OwnerOf(context.Background(), "6"); !core.IsNotFound(err) {
		t.Fatalf("expected not found for missing token, got %v", err)
	}
	if _, err := client.OwnerOf(context.Background(), "-1"); !core.HasTextCode(err, core.ErrorValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	held, err := client.HasCertificate(context.Background(), testOwner)
	if err != nil || !held {
		t.Fatalf("expected holder, got %v %v", held, err)
	}
	held, err = client.HasCertificate(context.Background(), "0x0000000000000000000000000000000000000009")
	if err != nil || held {
		t.Fatalf("expected non-holder, got %v %v", held, err)
	}
}

func TestClient_PackRejectsBadArguments(t *testing.T) {
	client := newTestClient(t, newFakeBackend(t), core.LedgerConfig{})
	cases := []core.LedgerCall{
		core.MintForCall("not-an-address", "cid", ""),
		core.MintForCall(testOwner, "", ""),
		core.TransferOwnershipCall("abc"),
		core.SetBaseURICall(""),
		{Operation: "selfdestruct"},
	}
	for _, call := range cases {
		if _, err := client.Send(context.Background(), call); !core.HasTextCode(err, core.ErrorValidation) {
			t.Fatalf("%s: expected validation error, got %v", call.Operation, err)
		}
	}
}
