package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"vendorhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemote struct {
	txns      []models.Transaction
	credits   []string
	txnErr    error
	walletErr error
}

func (f *fakeRemote) InsertTransaction(ctx context.Context, txn models.Transaction) error {
	if f.txnErr != nil {
		return f.txnErr
	}
	f.txns = append(f.txns, txn)
	return nil
}

func (f *fakeRemote) UpdateWallet(ctx context.Context, phone, amount, operation string) error {
	if f.walletErr != nil {
		return f.walletErr
	}
	f.credits = append(f.credits, amount+"/"+operation)
	return nil
}

type fakeStore struct {
	entries []*models.Settlement
	updates []string
}

func (f *fakeStore) ListUnreconciled(ctx context.Context, limit int) ([]*models.Settlement, error) {
	return f.entries, nil
}

func (f *fakeStore) UpdateSettlementSteps(ctx context.Context, settlementID string, txnLogged, walletDone, reconciled bool) error {
	f.updates = append(f.updates, settlementID)
	for _, e := range f.entries {
		if e.SettlementID == settlementID {
			e.TxnLogged = txnLogged
			e.WalletDone = walletDone
			e.Reconciled = reconciled
		}
	}
	return nil
}

func degradedCash() *models.Settlement {
	return &models.Settlement{
		SettlementID:  "S1",
		OrderID:       "OD100",
		VendorPhone:   "9999999999",
		TransactionID: "TRN123456789ABC",
		Amount:        "500",
		Method:        models.PaymentCash,
		TxnLogged:     false,
		WalletDone:    true,
		OrderUpdated:  true,
		CreatedAt:     time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReconcileReplaysMissingTransaction(t *testing.T) {
	remote := &fakeRemote{}
	store := &fakeStore{entries: []*models.Settlement{degradedCash()}}
	w := &Worker{Store: store, Remote: remote, Logger: zap.NewNop().Sugar(), Interval: time.Minute, BatchSize: 10}

	require.NoError(t, w.ReconcileOnce(context.Background()))

	require.Len(t, remote.txns, 1)
	assert.Equal(t, "TRN123456789ABC", remote.txns[0].TransactionID)
	assert.Equal(t, "2026-09-01", remote.txns[0].Date)
	assert.Empty(t, remote.credits, "already-done wallet credit must not be replayed")
	assert.True(t, store.entries[0].Reconciled)
}

func TestReconcileReplaysMissingWalletCredit(t *testing.T) {
	entry := degradedCash()
	entry.TxnLogged = true
	entry.WalletDone = false
	remote := &fakeRemote{}
	store := &fakeStore{entries: []*models.Settlement{entry}}
	w := &Worker{Store: store, Remote: remote, Logger: zap.NewNop().Sugar(), Interval: time.Minute, BatchSize: 10}

	require.NoError(t, w.ReconcileOnce(context.Background()))

	assert.Empty(t, remote.txns, "already-logged transaction must not be replayed")
	assert.Equal(t, []string{"500/Add"}, remote.credits)
	assert.True(t, store.entries[0].Reconciled)
}

func TestReconcileKeepsEntryPendingOnFailure(t *testing.T) {
	remote := &fakeRemote{txnErr: errors.New("still down")}
	store := &fakeStore{entries: []*models.Settlement{degradedCash()}}
	w := &Worker{Store: store, Remote: remote, Logger: zap.NewNop().Sugar(), Interval: time.Minute, BatchSize: 10}

	require.NoError(t, w.ReconcileOnce(context.Background()))

	assert.False(t, store.entries[0].Reconciled)
	assert.Empty(t, store.updates, "no progress means no journal write")
}
