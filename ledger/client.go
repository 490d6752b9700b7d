package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goliatone/go-certledger/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultConfirmationTimeout = 2 * time.Minute
	defaultPollInterval        = 2 * time.Second
	defaultGasMultiplier       = 1.2
)

var errReadOnly = errors.New("ledger: client has no signing key")

// Backend is the subset of an Ethereum JSON-RPC client the ledger needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	ContractAddress string
	// PrivateKey is the hex-encoded engine wallet key. Without it the client
	// only serves reads.
	PrivateKey string
	core.LedgerConfig
}

type Option func(*Client)

func WithLogger(logger glog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the certificate contract. Sends from one wallet are
// serialized so pending nonces are not reused.
type Client struct {
	backend    Backend
	contract   common.Address
	key        *ecdsa.PrivateKey
	from       common.Address
	abi        abi.ABI
	multiplier float64
	timeout    time.Duration
	poll       time.Duration
	logger     glog.Logger

	chainMu sync.Mutex
	chainID *big.Int
	sendMu  sync.Mutex
}

func NewClient(backend Backend, cfg Config, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger: backend is required")
	}
	contract := strings.TrimSpace(cfg.ContractAddress)
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", contract)
	}
	parsed, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("ledger: parse contract abi: %w", err)
	}

	multiplier := cfg.GasMultiplier
	if multiplier == 0 {
		multiplier = defaultGasMultiplier
	}
	if multiplier < core.MinGasMultiplier {
		return nil, fmt.Errorf("ledger: gas multiplier must be >= %.1f, got %.2f", core.MinGasMultiplier, multiplier)
	}
	timeout := cfg.ConfirmationTimeout
	if timeout <= 0 {
		timeout = defaultConfirmationTimeout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	_, logger := glog.Resolve("certledger.ledger", nil, nil)
	client := &Client{
		backend:    backend,
		contract:   common.HexToAddress(contract),
		abi:        parsed,
		multiplier: multiplier,
		timeout:    timeout,
		poll:       poll,
		logger:     glog.Ensure(logger),
	}
	if key := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"); key != "" {
		privateKey, err := crypto.HexToECDSA(key)
		if err != nil {
			return nil, fmt.Errorf("ledger: invalid private key: %w", err)
		}
		client.key = privateKey
		client.from = crypto.PubkeyToAddress(privateKey.PublicKey)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// From returns the engine wallet address, or the zero address for a
// read-only client.
func (c *Client) From() string {
	return core.NormalizeAddress(c.from.Hex())
}

func (c *Client) Contract() string {
	return core.NormalizeAddress(c.contract.Hex())
}

// ReadOwner returns the contract owner as of the latest block.
func (c *Client) ReadOwner(ctx context.Context) (string, error) {
	out, err := c.read(ctx, "owner")
	if err != nil {
		return "", core.NewServiceUnavailableError(err, "ledger: owner() call failed")
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return "", core.NewServiceUnavailableError(nil, "ledger: owner() returned an unexpected type")
	}
	return core.NormalizeAddress(owner.Hex()), nil
}

func (c *Client) HasCertificate(ctx context.Context, owner string) (bool, error) {
	account, err := parseAddress("owner", owner)
	if err != nil {
		return false, err
	}
	out, err := c.read(ctx, "hasCertificate", account)
	if err != nil {
		return false, core.NewServiceUnavailableError(err, "ledger: hasCertificate() call failed")
	}
	held, ok := out[0].(bool)
	if !ok {
		return false, core.NewServiceUnavailableError(nil, "ledger: hasCertificate() returned an unexpected type")
	}
	return held, nil
}

// OwnerOf resolves the holder of tokenID. A reverted lookup means the token
// does not exist.
func (c *Client) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}
	out, err := c.read(ctx, "ownerOf", id)
	if err != nil {
		if isRevert(err) {
			return "", core.NewNotFoundError("ledger: token does not exist", map[string]any{
				"token_id":      id.String(),
				"revert_reason": revertReason(err),
			})
		}
		return "", core.NewServiceUnavailableError(err, "ledger: ownerOf() call failed")
	}
	holder, ok := out[0].(common.Address)
	if !ok || holder == (common.Address{}) {
		return "", core.NewNotFoundError("ledger: token does not exist", map[string]any{"token_id": id.String()})
	}
	return core.NormalizeAddress(holder.Hex()), nil
}

// Send simulates call, estimates gas with the configured buffer, signs and
// broadcasts. It does not wait for the transaction to mine.
func (c *Client) Send(ctx context.Context, call core.LedgerCall) (core.PendingTx, error) {
	if c.key == nil {
		return core.PendingTx{}, core.NewSubmissionError(errReadOnly, "")
	}
	data, err := c.pack(call)
	if err != nil {
		return core.PendingTx{}, err
	}
	msg := ethereum.CallMsg{From: c.from, To: &c.contract, Data: data}
	if _, err := c.backend.CallContract(ctx, msg, nil); err != nil {
		return core.PendingTx{}, core.NewEstimationError(err, revertReason(err))
	}
	estimated, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return core.PendingTx{}, core.NewEstimationError(err, revertReason(err))
	}
	gasLimit := ApplyGasMultiplier(estimated, c.multiplier)

	chainID, err := c.chain(ctx)
	if err != nil {
		return core.PendingTx{}, core.NewSubmissionError(err, "")
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return core.PendingTx{}, core.NewSubmissionError(err, "")
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return core.PendingTx{}, core.NewSubmissionError(err, "")
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return core.PendingTx{}, core.NewSubmissionError(err, "")
	}
	txHash := signed.Hash().Hex()
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return core.PendingTx{}, core.NewSubmissionError(err, txHash)
	}
	c.logger.Info("ledger transaction broadcast",
		"operation", string(call.Operation),
		"tx_hash", txHash,
		"nonce", nonce,
		"gas_estimate", estimated,
		"gas_limit", gasLimit,
	)
	return core.PendingTx{TxHash: txHash, Nonce: nonce, GasLimit: gasLimit}, nil
}

// AwaitReceipt polls for txHash until it is mined or the confirmation timeout
// elapses. A timeout leaves the outcome unknown and returns a confirmation
// error carrying the hash; the caller may poll again later.
func (c *Client) AwaitReceipt(ctx context.Context, txHash string) (core.Receipt, error) {
	hash, err := parseTxHash(txHash)
	if err != nil {
		return core.Receipt{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return c.toReceipt(hash, receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			c.logger.Debug("ledger receipt poll failed", "tx_hash", hash.Hex(), "error", err.Error())
		}
		select {
		case <-waitCtx.Done():
			return core.Receipt{}, core.NewConfirmationError(hash.Hex(), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// Submit sends call and blocks until it is mined. A mined but reverted
// transaction returns its receipt together with a submission error.
func (c *Client) Submit(ctx context.Context, call core.LedgerCall) (core.Receipt, error) {
	pending, err := c.Send(ctx, call)
	if err != nil {
		return core.Receipt{}, err
	}
	receipt, err := c.AwaitReceipt(ctx, pending.TxHash)
	if err != nil {
		return core.Receipt{}, err
	}
	receipt.Operation = call.Operation
	if receipt.Status == core.ReceiptStatusReverted {
		return receipt, core.NewRevertedError(receipt.TxHash)
	}
	return receipt, nil
}

func (c *Client) read(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("ledger: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ledger: %s returned no values", method)
	}
	return out, nil
}

func (c *Client) pack(call core.LedgerCall) ([]byte, error) {
	switch call.Operation {
	case core.LedgerOpMintFor:
		owner, err := parseAddress("owner", call.Owner)
		if err != nil {
			return nil, err
		}
		referrer := common.Address{}
		if strings.TrimSpace(call.Referrer) != "" {
			if referrer, err = parseAddress("referrer", call.Referrer); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(call.CID) == "" {
			return nil, core.NewValidationError("cid", "cid is required")
		}
		return c.abi.Pack("mintFor", owner, strings.TrimSpace(call.CID), referrer)
	case core.LedgerOpMintVersion:
		owner, err := parseAddress("owner", call.Owner)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(call.CID) == "" {
			return nil, core.NewValidationError("cid", "cid is required")
		}
		return c.abi.Pack("mintVersion", owner, strings.TrimSpace(call.CID))
	case core.LedgerOpRevoke:
		id, err := parseTokenID(call.TokenID)
		if err != nil {
			return nil, err
		}
		return c.abi.Pack("revoke", id)
	case core.LedgerOpPause:
		return c.abi.Pack("pause")
	case core.LedgerOpUnpause:
		return c.abi.Pack("unpause")
	case core.LedgerOpTransferOwnership:
		newOwner, err := parseAddress("new_owner", call.NewOwner)
		if err != nil {
			return nil, err
		}
		return c.abi.Pack("transferOwnership", newOwner)
	case core.LedgerOpSetBaseURI:
		if strings.TrimSpace(call.URI) == "" {
			return nil, core.NewValidationError("uri", "uri is required")
		}
		return c.abi.Pack("setBaseGatewayURI", strings.TrimSpace(call.URI))
	default:
		return nil, core.NewValidationError("operation", fmt.Sprintf("unsupported ledger operation %q", call.Operation))
	}
}

func (c *Client) chain(ctx context.Context) (*big.Int, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: chain id lookup failed: %w", err)
	}
	c.chainID = id
	return id, nil
}

func (c *Client) toReceipt(hash common.Hash, mined *types.Receipt) core.Receipt {
	out := core.Receipt{
		TxHash:  hash.Hex(),
		Status:  core.ReceiptStatusSuccess,
		GasUsed: mined.GasUsed,
	}
	if mined.BlockNumber != nil {
		out.BlockNumber = mined.BlockNumber.Uint64()
	}
	if mined.Status != types.ReceiptStatusSuccessful {
		out.Status = core.ReceiptStatusReverted
		return out
	}
	out.TokenID = c.mintedTokenID(mined.Logs)
	return out
}

// mintedTokenID reads the token id from the contract's ERC-721 mint event,
// a Transfer from the zero address.
func (c *Client) mintedTokenID(logs []*types.Log) string {
	topic := c.abi.Events["Transfer"].ID
	for _, entry := range logs {
		if entry == nil || entry.Address != c.contract || len(entry.Topics) != 4 {
			continue
		}
		if entry.Topics[0] != topic || entry.Topics[1] != (common.Hash{}) {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[3].Bytes()).String()
	}
	return ""
}

// ApplyGasMultiplier scales an estimate by multiplier, rounding up. The
// multiplier never drops below core.MinGasMultiplier.
func ApplyGasMultiplier(estimate uint64, multiplier float64) uint64 {
	if multiplier < core.MinGasMultiplier {
		multiplier = core.MinGasMultiplier
	}
	basisPoints := uint64(math.Round(multiplier * 10000))
	if estimate > (math.MaxUint64-9999)/basisPoints {
		return math.MaxUint64
	}
	return (estimate*basisPoints + 9999) / 10000
}

func parseAddress(field string, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(raw), "0x") || !common.IsHexAddress(raw) {
		return common.Address{}, core.NewValidationError(field, "must be a 0x-prefixed 20-byte hex address")
	}
	return common.HexToAddress(raw), nil
}

func parseTokenID(raw string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || id.Sign() < 0 {
		return nil, core.NewValidationError("token_id", "must be a non-negative decimal integer")
	}
	return id, nil
}

func parseTxHash(raw string) (common.Hash, error) {
	raw = strings.TrimSpace(raw)
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, core.NewValidationError("tx_hash", "must be a 0x-prefixed 32-byte hex hash")
	}
	return common.BytesToHash(decoded), nil
}

type rpcDataError interface {
	ErrorData() interface{}
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpcDataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// revertReason decodes an Error(string) payload from a node error, falling
// back to the text after "execution reverted:".
func revertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpcDataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	message := err.Error()
	if idx := strings.Index(message, "execution reverted:"); idx >= 0 {
		return strings.TrimSpace(message[idx+len("execution reverted:"):])
	}
	return ""
}

var _ core.Ledger = (*Client)(nil)
