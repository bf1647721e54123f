package gasTopUp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lpstake/lpstake/internal/logger"
	"github.com/lpstake/lpstake/pkg/eventBus"
	"github.com/lpstake/lpstake/pkg/eventBus/eventBusTypes"
	"github.com/lpstake/lpstake/pkg/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pageCall struct {
	offset int
	limit  int
}

type fakeStore struct {
	mu         sync.Mutex
	recipients []*storage.Recipient
	pageCalls  []pageCall
	failAt     int
	audits     []*storage.GasTopUpAudit
}

func (f *fakeStore) ListRecipients(ctx context.Context) ([]*storage.Recipient, error) {
	return f.recipients, nil
}

func (f *fakeStore) ListRecipientsPage(ctx context.Context, offset int, limit int) ([]*storage.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, pageCall{offset: offset, limit: limit})
	if f.failAt > 0 && offset >= f.failAt {
		return nil, errors.New("connection reset")
	}
	if offset >= len(f.recipients) {
		return []*storage.Recipient{}, nil
	}
	end := offset + limit
	if end > len(f.recipients) {
		end = len(f.recipients)
	}
	return f.recipients[offset:end], nil
}

func (f *fakeStore) InsertGasTopUpAudits(ctx context.Context, audits []*storage.GasTopUpAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, audits...)
	return nil
}

type fakeFunder struct {
	mu        sync.Mutex
	balances  map[string]*big.Int
	failRead  map[string]bool
	failSend  map[string]bool
	sent      map[string]*big.Int
	delay     time.Duration
	inFlight  atomic.Int64
	maxFlight atomic.Int64
	waitErr   error
}

func newFakeFunder() *fakeFunder {
	return &fakeFunder{
		balances: map[string]*big.Int{},
		failRead: map[string]bool{},
		failSend: map[string]bool{},
		sent:     map[string]*big.Int{},
	}
}

func (f *fakeFunder) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxFlight.Load()
		if current <= seen || f.maxFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead[address] {
		return nil, errors.New("rpc unavailable")
	}
	if b, ok := f.balances[address]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeFunder) SendValue(ctx context.Context, to string, wei *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to] {
		return common.Hash{}, errors.New("nonce too low")
	}
	f.sent[to] = wei
	return common.BytesToHash([]byte(to)), nil
}

func (f *fakeFunder) WaitForConfirmation(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func makeRecipients(n int) []*storage.Recipient {
	recipients := make([]*storage.Recipient, 0, n)
	for i := 0; i < n; i++ {
		recipients = append(recipients, &storage.Recipient{
			UserId:        fmt.Sprintf("user-%03d", i),
			WalletId:      fmt.Sprintf("wallet-%03d", i),
			WalletAddress: fmt.Sprintf("0x%040x", i+1),
		})
	}
	return recipients
}

func testLogger() *zap.Logger {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return l
}

func Test_ParseAmountToWei(t *testing.T) {
	wei, err := ParseAmountToWei("0.01")
	assert.Nil(t, err)
	assert.Equal(t, "10000000000000000", wei.String())

	wei, err = ParseAmountToWei("1.000000000000000001")
	assert.Nil(t, err)
	assert.Equal(t, "1000000000000000001", wei.String())

	for _, bad := range []string{"", "abc", "0", "-1", "0.0000000000000000001"} {
		_, err := ParseAmountToWei(bad)
		assert.True(t, errors.Is(err, ErrInvalidAmount), bad)
	}
}

func Test_GasTopUp(t *testing.T) {
	l := testLogger()
	ctx := context.Background()

	t.Run("Never runs more than the configured number of tasks at once", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(40)}
		funder := newFakeFunder()
		funder.delay = 5 * time.Millisecond

		gt := NewGasTopUp(store, store, funder, nil, Options{PageSize: 40, Concurrency: 4}, nil, l)
		summary := gt.TopUpAll(ctx, "0.01")

		assert.True(t, summary.Success)
		assert.Equal(t, 40, summary.TotalChecked)
		assert.LessOrEqual(t, funder.maxFlight.Load(), int64(4))
		assert.Greater(t, funder.maxFlight.Load(), int64(1))
	})
	t.Run("Funds only wallets below the target", func(t *testing.T) {
		recipients := makeRecipients(2)
		store := &fakeStore{recipients: recipients}
		funder := newFakeFunder()
		target, _ := ParseAmountToWei("0.01")
		funder.balances[recipients[0].WalletAddress] = new(big.Int).Set(target)
		funder.balances[recipients[1].WalletAddress] = big.NewInt(1)

		summary := NewGasTopUp(store, store, funder, nil, Options{}, nil, l).TopUpAll(ctx, "0.01")
		assert.True(t, summary.Success)

		funded := summary.Details[0]
		assert.False(t, funded.TopUpPerformed)
		assert.Empty(t, funded.TxHash)
		assert.Equal(t, target.String(), funded.BalanceWei)
		assert.Equal(t, "0", funded.NeededWei)

		low := summary.Details[1]
		assert.True(t, low.TopUpPerformed)
		assert.NotEmpty(t, low.TxHash)
		assert.Equal(t, target.String(), low.NeededWei)
		assert.Equal(t, target, funder.sent[recipients[1].WalletAddress])
		assert.Equal(t, 1, summary.TotalToppedUp)
	})
	t.Run("Caps the number of rows at max across pages", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(25)}
		funder := newFakeFunder()

		summary := NewGasTopUp(store, store, funder, nil, Options{PageSize: 10, Concurrency: 3, Max: 17}, nil, l).TopUpAll(ctx, "0.01")
		assert.True(t, summary.Success)
		assert.Equal(t, 17, len(summary.Details))
		assert.Equal(t, []pageCall{{0, 10}, {10, 7}}, store.pageCalls)
		assert.Equal(t, "user-016", summary.Details[16].UserId)
	})
	t.Run("Walks every page when max is unset", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(25)}

		summary := NewGasTopUp(store, store, newFakeFunder(), nil, Options{PageSize: 10}, nil, l).TopUpAll(ctx, "0.01")
		assert.Equal(t, 25, len(summary.Details))
		assert.Equal(t, 3, len(store.pageCalls))
	})
	t.Run("Records wallet failures without stopping the run", func(t *testing.T) {
		recipients := makeRecipients(4)
		recipients[0].WalletAddress = ""
		store := &fakeStore{recipients: recipients}
		funder := newFakeFunder()
		funder.failRead[recipients[1].WalletAddress] = true
		funder.failSend[recipients[2].WalletAddress] = true
		funder.waitErr = errors.New("timeout")

		summary := NewGasTopUp(store, store, funder, nil, Options{}, nil, l).TopUpAll(ctx, "0.01")
		assert.True(t, summary.Success)
		assert.Equal(t, 4, summary.TotalChecked)
		assert.Equal(t, 3, summary.TotalErrors)
		assert.Contains(t, summary.Details[0].Error, "no address")
		assert.Contains(t, summary.Details[1].Error, "balance")
		assert.Contains(t, summary.Details[2].Error, "send")
		assert.Empty(t, summary.Details[3].Error)
		assert.True(t, summary.Details[3].TopUpPerformed)
	})
	t.Run("A page failure fails the run", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(25), failAt: 10}

		funder := newFakeFunder()

		summary := NewGasTopUp(store, store, funder, nil, Options{PageSize: 10}, nil, l).TopUpAll(ctx, "0.01")
		assert.False(t, summary.Success)
		assert.Contains(t, summary.Error, "offset 10")
		assert.NotNil(t, summary.Details)
		assert.Equal(t, 0, len(summary.Details))

		// transfers from the first page were sent and are still audited
		assert.Equal(t, 10, len(funder.sent))
		assert.Equal(t, 10, len(store.audits))
		assert.Equal(t, summary.RunId, store.audits[0].RunId)
	})
	t.Run("Fails fast on configuration problems", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(1)}

		summary := NewGasTopUp(store, store, nil, nil, Options{}, nil, l).TopUpAll(ctx, "0.01")
		assert.False(t, summary.Success)
		assert.Equal(t, ErrNoFunder.Error(), summary.Error)

		summary = NewGasTopUp(nil, nil, newFakeFunder(), nil, Options{}, nil, l).TopUpAll(ctx, "0.01")
		assert.False(t, summary.Success)
		assert.Equal(t, ErrNoStore.Error(), summary.Error)

		summary = NewGasTopUp(store, store, newFakeFunder(), nil, Options{}, nil, l).TopUpAll(ctx, "-5")
		assert.False(t, summary.Success)
		assert.Contains(t, summary.Error, "invalid top-up amount")
		assert.Equal(t, 0, len(store.pageCalls))
	})
	t.Run("Persists an audit row per wallet and publishes completion", func(t *testing.T) {
		store := &fakeStore{recipients: makeRecipients(3)}
		eb := eventBus.NewEventBus(l)
		consumer := &eventBusTypes.Consumer{Id: "test", Context: ctx, Channel: make(chan *eventBusTypes.Event, 10)}
		eb.Subscribe(consumer)

		progressCalls := atomic.Int64{}
		summary := NewGasTopUp(store, store, newFakeFunder(), eb, Options{
			OnProgress: func(processed int) { progressCalls.Add(1) },
		}, nil, l).TopUpAll(ctx, "0.01")

		assert.Equal(t, 3, len(store.audits))
		for _, a := range store.audits {
			assert.Equal(t, summary.RunId, a.RunId)
			assert.NotNil(t, a.TxHash)
		}
		assert.Equal(t, int64(3), progressCalls.Load())

		event := <-consumer.Channel
		assert.Equal(t, eventBusTypes.Event_GasTopUpCompleted, event.Name)
		data := event.Data.(*eventBusTypes.GasTopUpCompletedData)
		assert.Equal(t, 3, data.TotalToppedUp)
	})
}
