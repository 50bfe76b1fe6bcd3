package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/money"
)

// ERC20 minimal ABI for transfer and balanceOf
const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// Decision registry ABI: an append-only audit contract.
const registryABI = `[
	{"constant":false,"inputs":[{"name":"decisionId","type":"bytes32"},{"name":"summary","type":"string"},{"name":"amount","type":"uint256"},{"name":"riskScore","type":"uint8"}],"name":"logDecision","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"decisionId","type":"bytes32"},{"name":"status","type":"uint8"},{"name":"txRef","type":"string"}],"name":"updateStatus","outputs":[],"type":"function"}
]`

const (
	// DefaultGasLimit for ERC20 transfers and registry writes
	DefaultGasLimit = uint64(100000)

	// DefaultConfirmationTimeout for waiting on transactions
	DefaultConfirmationTimeout = 30 * time.Second

	// ConfirmationPollInterval between receipt checks
	ConfirmationPollInterval = 2 * time.Second
)

// statusCode maps a decision status to its on-chain enum value.
var statusCode = map[DecisionStatus]uint8{
	DecisionPending:   0,
	DecisionApproved:  1,
	DecisionExecuted:  2,
	DecisionFailed:    3,
	DecisionCancelled: 4,
}

// EthClient abstracts go-ethereum client for testing.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Config for creating a new EthLedger.
type Config struct {
	RPCURL           string
	PrivateKey       string // hex string, 0x prefix optional
	ChainID          int64
	USDCContract     string
	DecisionRegistry string
	ExplorerBaseURL  string
}

// Option configures the EthLedger.
type Option func(*EthLedger)

// WithClient sets a custom Ethereum client (useful for testing).
func WithClient(client EthClient) Option {
	return func(l *EthLedger) {
		l.client = client
	}
}

// EthLedger implements Client against an EVM chain: USDC transfers through
// the token contract, decisions through the registry contract.
//
// GetDecision reads are served from a local mirror of logged decisions; the
// chain is the audit record, not the read path.
type EthLedger struct {
	client      EthClient
	privateKey  *ecdsa.PrivateKey
	address     common.Address
	chainID     *big.Int
	usdc        common.Address
	registry    common.Address
	usdcABI     abi.ABI
	registryABI abi.ABI
	logger      *slog.Logger

	mu        sync.RWMutex
	decisions map[string]*DecisionRecord
}

// Compile-time interface check
var _ Client = (*EthLedger)(nil)

// NewEth creates a ledger client connected to an EVM chain.
func NewEth(cfg Config, logger *slog.Logger, opts ...Option) (*EthLedger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrInvalidPrivateKey)
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	regABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	l := &EthLedger{
		privateKey:  privateKey,
		address:     crypto.PubkeyToAddress(*publicKey),
		chainID:     big.NewInt(cfg.ChainID),
		usdc:        common.HexToAddress(cfg.USDCContract),
		registry:    common.HexToAddress(cfg.DecisionRegistry),
		usdcABI:     tokenABI,
		registryABI: regABI,
		logger:      logger,
		decisions:   make(map[string]*DecisionRecord),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
		}
		l.client = client
	}

	return l, nil
}

func validateConfig(cfg Config) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("%w: private key required", ErrInvalidPrivateKey)
	}
	if key := strings.TrimPrefix(cfg.PrivateKey, "0x"); len(key) != 64 {
		return fmt.Errorf("%w: must be 64 hex characters", ErrInvalidPrivateKey)
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain ID required")
	}
	if cfg.USDCContract == "" {
		return fmt.Errorf("USDC contract address required")
	}
	if cfg.DecisionRegistry == "" {
		return fmt.Errorf("decision registry address required")
	}
	return nil
}

// Address returns the platform wallet address.
func (l *EthLedger) Address() string {
	return l.address.Hex()
}

// BalanceOf returns an address's USDC balance as a decimal string.
func (l *EthLedger) BalanceOf(ctx context.Context, addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	data, err := l.usdcABI.Pack("balanceOf", common.HexToAddress(addr))
	if err != nil {
		return "", fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := l.client.CallContract(ctx, ethereum.CallMsg{
		To:   &l.usdc,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call balanceOf: %w", err)
	}

	return money.Format(new(big.Int).SetBytes(result)), nil
}

// Transfer sends USDC to a recipient. amount is a decimal string.
func (l *EthLedger) Transfer(ctx context.Context, to string, amount string) (*TransferResult, error) {
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, to)
	}
	raw, ok := money.Parse(amount)
	if !ok || raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	data, err := l.usdcABI.Pack("transfer", common.HexToAddress(to), raw)
	if err != nil {
		return nil, &TransferError{Op: "pack", Err: err}
	}

	signedTx, nonce, err := l.sendTx(ctx, l.usdc, data)
	if err != nil {
		return nil, err
	}

	return &TransferResult{
		TxHash: signedTx.Hash().Hex(),
		From:   l.address.Hex(),
		To:     to,
		Amount: money.Format(raw),
		Nonce:  nonce,
	}, nil
}

// LogDecision writes a pending decision to the registry contract.
func (l *EthLedger) LogDecision(ctx context.Context, rec *DecisionRecord) (*DecisionRecord, error) {
	if rec.ID == "" {
		rec.ID = idgen.WithPrefix("dec_")
	}
	raw, ok := money.Parse(rec.Amount)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, rec.Amount)
	}

	score := rec.RiskScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	data, err := l.registryABI.Pack("logDecision",
		decisionKey(rec.ID), rec.ActionSummary, raw, uint8(score))
	if err != nil {
		return nil, &TransferError{Op: "pack_decision", Err: err}
	}

	signedTx, _, err := l.sendTx(ctx, l.registry, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cp := *rec
	cp.Status = DecisionPending
	cp.CreatedAt = now
	cp.UpdatedAt = now

	l.mu.Lock()
	l.decisions[cp.ID] = &cp
	l.mu.Unlock()

	l.logger.Info("decision logged on chain",
		"decision", cp.ID, "tx", signedTx.Hash().Hex(), "amount", cp.Amount, "risk_score", score)

	out := cp
	return &out, nil
}

// UpdateDecisionStatus settles a decision's final status on the registry.
func (l *EthLedger) UpdateDecisionStatus(ctx context.Context, id string, status DecisionStatus, txRef string) error {
	code, ok := statusCode[status]
	if !ok {
		return fmt.Errorf("ledger: unknown decision status %q", status)
	}

	data, err := l.registryABI.Pack("updateStatus", decisionKey(id), code, txRef)
	if err != nil {
		return &TransferError{Op: "pack_status", Err: err}
	}

	if _, _, err := l.sendTx(ctx, l.registry, data); err != nil {
		return err
	}

	l.mu.Lock()
	if rec, ok := l.decisions[id]; ok {
		rec.Status = status
		rec.TxRef = txRef
		rec.UpdatedAt = time.Now()
	}
	l.mu.Unlock()
	return nil
}

// GetDecision returns a previously logged decision.
func (l *EthLedger) GetDecision(_ context.Context, id string) (*DecisionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.decisions[id]
	if !ok {
		return nil, ErrDecisionNotFound
	}
	cp := *rec
	return &cp, nil
}

// WaitForConfirmation waits for a transaction to be mined.
func (l *EthLedger) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*TransferResult, error) {
	hash := common.HexToHash(txHash)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(ConfirmationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: waiting for tx %s", ErrTimeout, txHash)
			}
			return nil, ctx.Err()

		case <-ticker.C:
			receipt, err := l.client.TransactionReceipt(ctx, hash)
			if err != nil {
				// Not yet mined, keep waiting
				continue
			}

			if receipt.Status == 0 {
				return nil, &TransferError{Op: "confirm", TxHash: txHash, Err: ErrTransactionFailed}
			}

			return &TransferResult{
				TxHash:      txHash,
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
			}, nil
		}
	}
}

// Close closes the client connection.
func (l *EthLedger) Close() error {
	if l.client != nil {
		l.client.Close()
	}
	return nil
}

// sendTx signs and submits a contract call from the platform wallet.
func (l *EthLedger) sendTx(ctx context.Context, to common.Address, data []byte) (*types.Transaction, uint64, error) {
	nonce, err := l.client.PendingNonceAt(ctx, l.address)
	if err != nil {
		return nil, 0, &TransferError{Op: "nonce", Err: err}
	}

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, 0, &TransferError{Op: "gas_price", Err: err}
	}

	gasLimit, err := l.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  l.address,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		// Use default if estimation fails
		gasLimit = DefaultGasLimit
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(l.chainID), l.privateKey)
	if err != nil {
		return nil, 0, &TransferError{Op: "sign", Err: err}
	}

	if err := l.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, 0, &TransferError{Op: "send", TxHash: signedTx.Hash().Hex(), Err: err}
	}

	return signedTx, nonce, nil
}

// decisionKey hashes a decision ID into the bytes32 registry key.
func decisionKey(id string) [32]byte {
	var key [32]byte
	copy(key[:], crypto.Keccak256([]byte(id)))
	return key
}
