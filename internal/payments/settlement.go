package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vendorhub/internal/lifecycle"
	"vendorhub/internal/models"
	"vendorhub/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const walletOpAdd = "Add"

// Remote is the slice of the upstream client settlement needs.
type Remote interface {
	InsertTransaction(ctx context.Context, txn models.Transaction) error
	UpdateWallet(ctx context.Context, phone, amount, operation string) error
	UpdateOrders(ctx context.Context, p remote.UpdateOrderParams) error
}

// Journal persists settlement outcomes so degraded ones can be replayed and
// a retried settlement can skip the steps a failed attempt already ran.
type Journal interface {
	InsertSettlement(ctx context.Context, s models.Settlement) error
	LatestSettlement(ctx context.Context, orderID string) (*models.Settlement, error)
}

// Service runs the settlement pipeline in the contract order: transaction
// record first, then the wallet credit (Cash only), then the order payment
// method. The transaction step must finish, success or failure, before the
// wallet is touched.
type Service struct {
	remote  Remote
	journal Journal
	logger  *zap.SugaredLogger

	Now   func() time.Time
	NewID func() string
}

func NewService(r Remote, j Journal, logger *zap.SugaredLogger) *Service {
	return &Service{
		remote:  r,
		journal: j,
		logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   NewTransactionID,
	}
}

// NewTransactionID keeps the historical TRN prefix but derives the digits
// from a UUID so concurrent vendors cannot collide.
func NewTransactionID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TRN" + raw[:12]
}

func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// Settle records the payment for an Onservice order. The returned result is
// explicit about what committed: the order update decides commitment, the
// transaction log and wallet credit decide whether the result is degraded.
// A degraded result is journaled for the reconciler and returned without
// error so callers surface it instead of treating it as failure.
func (s *Service) Settle(ctx context.Context, order *models.Order, amount float64, method models.PaymentMethod) (*lifecycle.SettlementResult, error) {
	result := &lifecycle.SettlementResult{Method: method}
	amountStr := FormatAmount(amount)

	// A retry after a failed order update must not re-run the transaction
	// record or the wallet credit; resume the prior attempt instead.
	settlementID := ""
	if prior := s.priorAttempt(ctx, order.OrderID); prior != nil {
		settlementID = prior.SettlementID
		result.TransactionID = prior.TransactionID
		result.TxnLogged = prior.TxnLogged
		result.WalletDone = prior.WalletDone
	}
	if result.TransactionID == "" {
		result.TransactionID = s.NewID()
	}

	if !result.TxnLogged {
		txn := models.Transaction{
			TransactionID: result.TransactionID,
			Amount:        amountStr,
			Date:          s.Now().Format("2006-01-02"),
			Phone:         order.VendorPhone,
		}
		if err := s.remote.InsertTransaction(ctx, txn); err != nil {
			s.logger.Warnw("transaction log failed", "order", order.OrderID, "txn", txn.TransactionID, "error", err)
		} else {
			result.TxnLogged = true
		}
	}

	if method == models.PaymentCash && !result.WalletDone {
		if err := s.remote.UpdateWallet(ctx, order.VendorPhone, amountStr, walletOpAdd); err != nil {
			s.logger.Warnw("wallet credit failed", "order", order.OrderID, "error", err)
		} else {
			result.WalletDone = true
		}
	}

	err := s.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:       order.OrderID,
		Status:        models.OrderOnservice,
		VendorPhone:   order.VendorPhone,
		PaymentMethod: method,
	})
	if err == nil {
		result.Committed = true
	}

	s.journalOutcome(ctx, settlementID, order, amountStr, method, result)

	if err != nil {
		return result, fmt.Errorf("payment method update: %w", err)
	}
	return result, nil
}

// priorAttempt returns the last journaled attempt for the order, but only if
// it never committed; a committed attempt is blocked earlier by the payment
// gate.
func (s *Service) priorAttempt(ctx context.Context, orderID string) *models.Settlement {
	if s.journal == nil {
		return nil
	}
	prior, err := s.journal.LatestSettlement(ctx, orderID)
	if err != nil {
		s.logger.Warnw("settlement lookup failed", "order", orderID, "error", err)
		return nil
	}
	if prior == nil || prior.OrderUpdated {
		return nil
	}
	return prior
}

func (s *Service) journalOutcome(ctx context.Context, settlementID string, order *models.Order, amount string, method models.PaymentMethod, result *lifecycle.SettlementResult) {
	if s.journal == nil {
		return
	}
	if settlementID == "" {
		settlementID = uuid.NewString()
	}
	now := s.Now()
	entry := models.Settlement{
		SettlementID:  settlementID,
		OrderID:       order.OrderID,
		VendorPhone:   order.VendorPhone,
		TransactionID: result.TransactionID,
		Amount:        amount,
		Method:        method,
		TxnLogged:     result.TxnLogged,
		WalletDone:    result.WalletDone,
		OrderUpdated:  result.Committed,
		Reconciled:    result.Committed && result.TxnLogged && (method != models.PaymentCash || result.WalletDone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.journal.InsertSettlement(ctx, entry); err != nil {
		s.logger.Warnw("journal settlement failed", "order", order.OrderID, "error", err)
	}
}
