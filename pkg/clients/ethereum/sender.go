package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const (
	transferGasLimit    = uint64(21000)
	receiptPollInterval = 2 * time.Second
	defaultSendRetries  = 3
	baseFeeMultiplier   = 2
)

var ErrInvalidAddress = errors.New("invalid address")

type SenderConfig struct {
	PrivateKey string
	ChainId    int64
	MaxRetries int
}

// CustodySender signs and submits native-token transfers from the custody account.
// Submissions are serialized so each one reads a fresh pending nonce.
type CustodySender struct {
	backend    Backend
	key        *ecdsa.PrivateKey
	from       common.Address
	chainId    *big.Int
	maxRetries int
	logger     *zap.Logger

	mu         sync.Mutex
	newBackOff func() backoff.BackOff
	pollEvery  time.Duration
}

func NewCustodySender(backend Backend, cfg *SenderConfig, l *zap.Logger) (*CustodySender, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid custody private key: %w", err)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultSendRetries
	}

	var chainId *big.Int
	if cfg.ChainId > 0 {
		chainId = big.NewInt(cfg.ChainId)
	}

	return &CustodySender{
		backend:    backend,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		chainId:    chainId,
		maxRetries: maxRetries,
		logger:     l,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		pollEvery: receiptPollInterval,
	}, nil
}

func (s *CustodySender) Address() common.Address {
	return s.from
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: '%s'", ErrInvalidAddress, address)
	}
	return common.HexToAddress(address), nil
}

func (s *CustodySender) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return s.backend.BalanceAt(ctx, addr, nil)
}

// SendValue transfers wei to the address and returns the transaction hash once the
// node has accepted it. Nonce races are retried with exponential backoff.
func (s *CustodySender) SendValue(ctx context.Context, to string, wei *big.Int) (common.Hash, error) {
	toAddr, err := parseAddress(to)
	if err != nil {
		return common.Hash{}, err
	}
	if wei == nil || wei.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("transfer amount must be positive")
	}

	var hash common.Hash
	attempt := 0
	operation := func() error {
		attempt++
		h, err := s.sendOnce(ctx, toAddr, wei)
		if err == nil {
			hash = h
			return nil
		}
		txErr := newTxError(err)
		if !txErr.Retryable() {
			return backoff.Permanent(txErr)
		}
		return txErr
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Sugar().Warnw("Retrying transfer",
			zap.String("to", toAddr.Hex()),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var txErr *TxError
		if errors.As(err, &txErr) {
			return common.Hash{}, txErr
		}
		return common.Hash{}, newTxError(err)
	}
	return hash, nil
}

func (s *CustodySender) getChainId(ctx context.Context) (*big.Int, error) {
	if s.chainId != nil {
		return s.chainId, nil
	}
	chainId, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	s.chainId = chainId
	return chainId, nil
}

func (s *CustodySender) sendOnce(ctx context.Context, to common.Address, wei *big.Int) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chainId, err := s.getChainId(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get pending nonce: %w", err)
	}

	tipCap, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	head, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(baseFeeMultiplier)))
	}

	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.from,
		To:    &to,
		Value: wei,
	})
	if err != nil || gasLimit < transferGasLimit {
		gasLimit = transferGasLimit
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainId,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     wei,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainId), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}
	s.logger.Sugar().Infow("Submitted transfer",
		zap.String("to", to.Hex()),
		zap.String("wei", wei.String()),
		zap.Uint64("nonce", nonce),
		zap.String("txHash", signedTx.Hash().Hex()),
	)
	return signedTx.Hash(), nil
}

// WaitForConfirmation polls for the receipt until it is mined or the timeout elapses.
func (s *CustodySender) WaitForConfirmation(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()
	for {
		receipt, err := s.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Sugar().Debugw("Failed to get receipt", zap.String("txHash", txHash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, newTxError(ctx.Err())
		case <-ticker.C:
		}
	}
}
