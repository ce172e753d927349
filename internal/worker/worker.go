package worker

import (
	"context"
	"time"

	"vendorhub/internal/models"

	"go.uber.org/zap"
)

// Remote is the slice of the upstream client replay needs.
type Remote interface {
	InsertTransaction(ctx context.Context, txn models.Transaction) error
	UpdateWallet(ctx context.Context, phone, amount, operation string) error
}

type Store interface {
	ListUnreconciled(ctx context.Context, limit int) ([]*models.Settlement, error)
	UpdateSettlementSteps(ctx context.Context, settlementID string, txnLogged, walletDone, reconciled bool) error
}

// Worker replays the side steps of degraded settlements: payments that
// committed upstream but whose transaction record or wallet credit failed.
// Each step is retried at most once per tick and marked in the journal, so
// a replayed credit is never applied twice.
type Worker struct {
	Store     Store
	Remote    Remote
	Logger    *zap.SugaredLogger
	Interval  time.Duration
	BatchSize int
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		if err := w.ReconcileOnce(ctx); err != nil {
			w.Logger.Warnw("reconcile pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) ReconcileOnce(ctx context.Context) error {
	entries, err := w.Store.ListUnreconciled(ctx, w.BatchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		w.reconcile(ctx, entry)
	}
	return nil
}

func (w *Worker) reconcile(ctx context.Context, entry *models.Settlement) {
	txnLogged := entry.TxnLogged
	walletDone := entry.WalletDone

	if !txnLogged {
		txn := models.Transaction{
			TransactionID: entry.TransactionID,
			Amount:        entry.Amount,
			Date:          entry.CreatedAt.Format("2006-01-02"),
			Phone:         entry.VendorPhone,
		}
		if err := w.Remote.InsertTransaction(ctx, txn); err != nil {
			w.Logger.Warnw("transaction replay failed", "settlement", entry.SettlementID, "error", err)
		} else {
			txnLogged = true
			w.Logger.Infow("transaction replayed", "settlement", entry.SettlementID, "txn", entry.TransactionID)
		}
	}

	if entry.Method == models.PaymentCash && !walletDone {
		if err := w.Remote.UpdateWallet(ctx, entry.VendorPhone, entry.Amount, "Add"); err != nil {
			w.Logger.Warnw("wallet replay failed", "settlement", entry.SettlementID, "error", err)
		} else {
			walletDone = true
			w.Logger.Infow("wallet credit replayed", "settlement", entry.SettlementID, "amount", entry.Amount)
		}
	}

	reconciled := txnLogged && (entry.Method != models.PaymentCash || walletDone)
	if txnLogged == entry.TxnLogged && walletDone == entry.WalletDone && !reconciled {
		return
	}
	if err := w.Store.UpdateSettlementSteps(ctx, entry.SettlementID, txnLogged, walletDone, reconciled); err != nil {
		w.Logger.Warnw("settlement journal update failed", "settlement", entry.SettlementID, "error", err)
	}
}
