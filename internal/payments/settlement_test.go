package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"vendorhub/internal/models"
	"vendorhub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemote struct {
	txns    []models.Transaction
	credits []string
	updates []remote.UpdateOrderParams

	order []string // call order, for the pipeline ordering check

	txnErr    error
	walletErr error
	updateErr error
}

func (f *fakeRemote) InsertTransaction(ctx context.Context, txn models.Transaction) error {
	f.order = append(f.order, "txn")
	if f.txnErr != nil {
		return f.txnErr
	}
	f.txns = append(f.txns, txn)
	return nil
}

func (f *fakeRemote) UpdateWallet(ctx context.Context, phone, amount, operation string) error {
	f.order = append(f.order, "wallet")
	if f.walletErr != nil {
		return f.walletErr
	}
	f.credits = append(f.credits, amount+"/"+operation)
	return nil
}

func (f *fakeRemote) UpdateOrders(ctx context.Context, p remote.UpdateOrderParams) error {
	f.order = append(f.order, "order")
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, p)
	return nil
}

type fakeJournal struct {
	entries []models.Settlement
	err     error
}

func (f *fakeJournal) InsertSettlement(ctx context.Context, s models.Settlement) error {
	if f.err != nil {
		return f.err
	}
	for i := range f.entries {
		if f.entries[i].SettlementID == s.SettlementID {
			f.entries[i] = s
			return nil
		}
	}
	f.entries = append(f.entries, s)
	return nil
}

func (f *fakeJournal) LatestSettlement(ctx context.Context, orderID string) (*models.Settlement, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].OrderID == orderID {
			entry := f.entries[i]
			return &entry, nil
		}
	}
	return nil, nil
}

func newService(r *fakeRemote, j *fakeJournal) *Service {
	s := NewService(r, j, zap.NewNop().Sugar())
	s.Now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	s.NewID = func() string { return "TRN123456789ABC" }
	return s
}

func onserviceOrder() *models.Order {
	return &models.Order{
		OrderID:     "OD100",
		VendorPhone: "9999999999",
		Status:      models.OrderOnservice,
		BeforeVideo: "clip",
	}
}

func TestSettleCashCreditsWalletOnce(t *testing.T) {
	r := &fakeRemote{}
	j := &fakeJournal{}
	svc := newService(r, j)

	result, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.NoError(t, err)

	require.Len(t, r.txns, 1)
	assert.Equal(t, "500", r.txns[0].Amount)
	assert.Equal(t, "2026-09-01", r.txns[0].Date)
	assert.Equal(t, []string{"500/Add"}, r.credits)
	require.Len(t, r.updates, 1)
	assert.Equal(t, models.PaymentCash, r.updates[0].PaymentMethod)

	assert.True(t, result.Committed)
	assert.True(t, result.TxnLogged)
	assert.True(t, result.WalletDone)
	assert.False(t, result.Degraded())

	require.Len(t, j.entries, 1)
	assert.True(t, j.entries[0].Reconciled)
}

func TestSettleOnlineSkipsWallet(t *testing.T) {
	r := &fakeRemote{}
	svc := newService(r, &fakeJournal{})

	result, err := svc.Settle(context.Background(), onserviceOrder(), 750, models.PaymentOnline)
	require.NoError(t, err)

	assert.Len(t, r.txns, 1)
	assert.Empty(t, r.credits, "online payment must not credit the wallet")
	assert.True(t, result.Committed)
}

func TestSettleOrdering(t *testing.T) {
	r := &fakeRemote{}
	svc := newService(r, &fakeJournal{})

	_, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, []string{"txn", "wallet", "order"}, r.order)
}

func TestSettleDegradedWhenTransactionLogFails(t *testing.T) {
	r := &fakeRemote{txnErr: errors.New("upstream down")}
	j := &fakeJournal{}
	svc := newService(r, j)

	result, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.NoError(t, err, "a failed transaction log is degraded, not failed")

	assert.True(t, result.Committed)
	assert.False(t, result.TxnLogged)
	assert.True(t, result.Degraded())

	require.Len(t, j.entries, 1)
	entry := j.entries[0]
	assert.False(t, entry.Reconciled)
	assert.True(t, entry.OrderUpdated)
	assert.True(t, entry.Pending(), "degraded settlement must be pending for the reconciler")
}

func TestSettleNotCommittedWhenOrderUpdateFails(t *testing.T) {
	r := &fakeRemote{updateErr: errors.New("upstream down")}
	j := &fakeJournal{}
	svc := newService(r, j)

	result, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.Error(t, err)
	assert.False(t, result.Committed)

	require.Len(t, j.entries, 1)
	assert.False(t, j.entries[0].Pending(), "uncommitted settlement is not replayable")
}

func TestSettleDegradedWhenWalletCreditFails(t *testing.T) {
	r := &fakeRemote{walletErr: errors.New("upstream down")}
	j := &fakeJournal{}
	svc := newService(r, j)

	result, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.True(t, result.TxnLogged)
	assert.False(t, result.WalletDone)
	assert.True(t, result.Degraded(), "a committed cash settlement without the credit is degraded")

	require.Len(t, j.entries, 1)
	assert.True(t, j.entries[0].Pending())
}

func TestSettleRetrySkipsCompletedSteps(t *testing.T) {
	r := &fakeRemote{updateErr: errors.New("upstream down")}
	j := &fakeJournal{}
	svc := newService(r, j)

	first, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.Error(t, err)
	assert.False(t, first.Committed)
	require.Len(t, r.txns, 1)
	require.Len(t, r.credits, 1)

	// The retry must replay only the order update; the transaction record
	// and the wallet credit already happened.
	r.updateErr = nil
	second, err := svc.Settle(context.Background(), onserviceOrder(), 500, models.PaymentCash)
	require.NoError(t, err)

	assert.True(t, second.Committed)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Len(t, r.txns, 1, "the transaction record must not be duplicated")
	assert.Len(t, r.credits, 1, "the wallet must not be credited twice")
	require.Len(t, r.updates, 1)

	require.Len(t, j.entries, 1, "the retry updates the prior journal row")
	assert.True(t, j.entries[0].OrderUpdated)
	assert.True(t, j.entries[0].Reconciled)
}

func TestNewTransactionIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTransactionID()
		assert.Len(t, id, 15)
		assert.Equal(t, "TRN", id[:3])
		assert.False(t, seen[id], "transaction ids must not repeat")
		seen[id] = true
	}
}
