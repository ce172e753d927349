package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vendorhub/internal/models"
	"vendorhub/internal/remote"

	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found in expected status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrBeforeVideoSet    = errors.New("before video already uploaded")
	ErrBeforeVideoNeeded = errors.New("before video required first")
	ErrPaymentRecorded   = errors.New("payment already recorded")
	ErrPaymentNeeded     = errors.New("payment confirmation required first")
	ErrAfterVideoSet     = errors.New("after video already uploaded")
	ErrWrongOTP          = errors.New("otp does not match order")
	ErrBusy              = errors.New("another call for this order is in flight")
	ErrNotCompleted      = errors.New("after video stored but completion not committed")
	ErrInvalidMethod     = errors.New("payment method must be Cash or Online")
)

// transitions holds the only legal status edges. Declined, Cancelled and
// Completed are terminal from the vendor's side.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderDone, models.OrderDeclined},
	models.OrderDone:      {models.OrderOnservice, models.OrderCancelled},
	models.OrderOnservice: {models.OrderCompleted, models.OrderCancelled},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Remote is the slice of the upstream client the controller needs.
type Remote interface {
	AcceptLead(ctx context.Context, orderID, vendorPhone string) error
	DeclineLead(ctx context.Context, orderID, vendorPhone string) error
	ShowOrders(ctx context.Context, vendorPhone string, status models.OrderStatus) ([]models.Order, error)
	UpdateOrders(ctx context.Context, p remote.UpdateOrderParams) error
}

// Settler runs the payment side-effect pipeline (transaction record, wallet
// credit, order update) in the required order.
type Settler interface {
	Settle(ctx context.Context, order *models.Order, amount float64, method models.PaymentMethod) (*SettlementResult, error)
}

// SettlementResult is the explicit per-operation outcome for a payment
// confirmation. Committed means the order now carries the payment method;
// a committed result can still be degraded when a side step failed.
type SettlementResult struct {
	TransactionID string
	Method        models.PaymentMethod
	Committed     bool
	TxnLogged     bool
	WalletDone    bool
}

// Degraded reports whether a committed settlement still misses a side step:
// the transaction record, or the wallet credit for Cash.
func (r *SettlementResult) Degraded() bool {
	if !r.Committed {
		return false
	}
	if !r.TxnLogged {
		return true
	}
	return r.Method == models.PaymentCash && !r.WalletDone
}

// Journal persists committed transitions for audit. A nil journal disables it.
type Journal interface {
	RecordTransition(ctx context.Context, t models.Transition) error
}

// Controller is the single authoritative lifecycle module. Every view and
// handler goes through it; none reimplements transition logic.
type Controller struct {
	remote  Remote
	settler Settler
	journal Journal
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	inflight map[string]string
}

func NewController(r Remote, s Settler, j Journal, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		remote:   r,
		settler:  s,
		journal:  j,
		logger:   logger,
		inflight: make(map[string]string),
	}
}

// begin rejects a second call for an order while one is outstanding.
func (c *Controller) begin(orderID, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.inflight[orderID]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, prev)
	}
	c.inflight[orderID] = action
	return nil
}

func (c *Controller) end(orderID string) {
	c.mu.Lock()
	delete(c.inflight, orderID)
	c.mu.Unlock()
}

func (c *Controller) record(ctx context.Context, t models.Transition) {
	if c.journal == nil {
		return
	}
	t.CreatedAt = time.Now().UTC()
	if err := c.journal.RecordTransition(ctx, t); err != nil {
		c.logger.Warnw("journal transition failed", "order", t.OrderID, "action", t.Action, "error", err)
	}
}

// Accept claims a pending lead and moves the order to Done. The transition
// is committed only after both remote calls confirm; any failure leaves the
// lead pending.
func (c *Controller) Accept(ctx context.Context, orderID, vendorPhone string) error {
	if err := c.begin(orderID, "accept"); err != nil {
		return err
	}
	defer c.end(orderID)

	if err := c.remote.AcceptLead(ctx, orderID, vendorPhone); err != nil {
		return fmt.Errorf("accept lead: %w", err)
	}
	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderDone,
		VendorPhone: vendorPhone,
	}); err != nil {
		return fmt.Errorf("accept status update: %w", err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderPending,
		To:          models.OrderDone,
		Action:      "accept",
	})
	return nil
}

// Decline releases a pending lead. Used by both the manual path and the
// countdown expiry.
func (c *Controller) Decline(ctx context.Context, orderID, vendorPhone string) error {
	if err := c.begin(orderID, "decline"); err != nil {
		return err
	}
	defer c.end(orderID)

	if err := c.remote.DeclineLead(ctx, orderID, vendorPhone); err != nil {
		return fmt.Errorf("decline lead: %w", err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderPending,
		To:          models.OrderDeclined,
		Action:      "decline",
	})
	return nil
}

// StartService confirms the on-site OTP and moves a Done order to Onservice.
// The OTP comes from the order record itself; this is a confirmation step,
// not a secret exchange.
func (c *Controller) StartService(ctx context.Context, orderID, vendorPhone, otp string) error {
	if err := c.begin(orderID, "start-service"); err != nil {
		return err
	}
	defer c.end(orderID)

	order, err := c.findOrder(ctx, vendorPhone, models.OrderDone, orderID)
	if err != nil {
		return err
	}
	if order.OTP == "" || order.OTP != otp {
		return ErrWrongOTP
	}

	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderOnservice,
		VendorPhone: vendorPhone,
		OTP:         otp,
	}); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderDone,
		To:          models.OrderOnservice,
		Action:      "start-service",
	})
	return nil
}

// UploadBeforeVideo persists the "before" evidence and clears the first
// Onservice gate. Upload failure never clears the gate.
func (c *Controller) UploadBeforeVideo(ctx context.Context, orderID, vendorPhone, video string) error {
	if err := c.begin(orderID, "before-video"); err != nil {
		return err
	}
	defer c.end(orderID)

	order, err := c.findOrder(ctx, vendorPhone, models.OrderOnservice, orderID)
	if err != nil {
		return err
	}
	if order.BeforeVideoDone() {
		return ErrBeforeVideoSet
	}

	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderOnservice,
		VendorPhone: vendorPhone,
		BeforeVideo: video,
	}); err != nil {
		return fmt.Errorf("before video upload: %w", err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderOnservice,
		To:          models.OrderOnservice,
		Action:      "before-video",
	})
	return nil
}

// ConfirmPayment runs the settlement pipeline once the before-video gate is
// cleared. The result distinguishes committed, degraded and rejected
// outcomes; degraded results are surfaced, never hidden.
func (c *Controller) ConfirmPayment(ctx context.Context, orderID, vendorPhone string, amount float64, method models.PaymentMethod) (*SettlementResult, error) {
	if err := c.begin(orderID, "confirm-payment"); err != nil {
		return nil, err
	}
	defer c.end(orderID)

	if method != models.PaymentCash && method != models.PaymentOnline {
		return nil, ErrInvalidMethod
	}

	order, err := c.findOrder(ctx, vendorPhone, models.OrderOnservice, orderID)
	if err != nil {
		return nil, err
	}
	if !order.BeforeVideoDone() {
		return nil, ErrBeforeVideoNeeded
	}
	if order.PaymentDone() {
		return nil, ErrPaymentRecorded
	}

	result, err := c.settler.Settle(ctx, order, amount, method)
	if err != nil {
		return result, err
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderOnservice,
		To:          models.OrderOnservice,
		Action:      "confirm-payment",
	})
	return result, nil
}

// UploadAfterVideo persists the "after" evidence and then completes the
// order. It is legal only once payment is recorded; if the completion update
// fails after the video stored, ErrNotCompleted is returned so the caller
// can retry completion without re-uploading.
func (c *Controller) UploadAfterVideo(ctx context.Context, orderID, vendorPhone, video string) error {
	if err := c.begin(orderID, "after-video"); err != nil {
		return err
	}
	defer c.end(orderID)

	order, err := c.findOrder(ctx, vendorPhone, models.OrderOnservice, orderID)
	if err != nil {
		return err
	}
	if !order.PaymentDone() {
		return ErrPaymentNeeded
	}
	if order.AfterVideoDone() {
		return ErrAfterVideoSet
	}

	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderOnservice,
		VendorPhone: vendorPhone,
		AfterVideo:  video,
	}); err != nil {
		return fmt.Errorf("after video upload: %w", err)
	}

	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderCompleted,
		VendorPhone: vendorPhone,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrNotCompleted, err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        models.OrderOnservice,
		To:          models.OrderCompleted,
		Action:      "after-video",
	})
	return nil
}

// CancelService cancels an order from Done or Onservice. No reversal.
func (c *Controller) CancelService(ctx context.Context, orderID, vendorPhone string) error {
	if err := c.begin(orderID, "cancel"); err != nil {
		return err
	}
	defer c.end(orderID)

	order, err := c.findOrder(ctx, vendorPhone, models.OrderDone, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		order, err = c.findOrder(ctx, vendorPhone, models.OrderOnservice, orderID)
	}
	if err != nil {
		return err
	}
	if !CanTransition(order.Status, models.OrderCancelled) {
		return ErrIllegalTransition
	}

	if err := c.remote.UpdateOrders(ctx, remote.UpdateOrderParams{
		OrderID:     orderID,
		Status:      models.OrderCancelled,
		VendorPhone: vendorPhone,
	}); err != nil {
		return fmt.Errorf("cancel service: %w", err)
	}

	c.record(ctx, models.Transition{
		OrderID:     orderID,
		VendorPhone: vendorPhone,
		From:        order.Status,
		To:          models.OrderCancelled,
		Action:      "cancel",
	})
	return nil
}

// Orders returns the vendor's orders in the given status, merged one row per
// OrderID.
func (c *Controller) Orders(ctx context.Context, vendorPhone string, status models.OrderStatus) ([]*models.Order, error) {
	rows, err := c.remote.ShowOrders(ctx, vendorPhone, status)
	if err != nil {
		return nil, err
	}
	return MergeOrderRows(rows), nil
}

func (c *Controller) findOrder(ctx context.Context, vendorPhone string, status models.OrderStatus, orderID string) (*models.Order, error) {
	orders, err := c.Orders(ctx, vendorPhone, status)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not in %s", ErrOrderNotFound, orderID, status)
}

// MergeOrderRows collapses the upstream row-per-item shape into one order
// per OrderID, keeping the latest non-empty evidence and payment fields.
func MergeOrderRows(rows []models.Order) []*models.Order {
	byID := make(map[string]*models.Order)
	var out []*models.Order
	for i := range rows {
		row := rows[i]
		merged, ok := byID[row.OrderID]
		if !ok {
			copied := row
			byID[row.OrderID] = &copied
			out = append(out, &copied)
			continue
		}
		if row.BeforeVideo != "" {
			merged.BeforeVideo = row.BeforeVideo
		}
		if row.AfterVideo != "" {
			merged.AfterVideo = row.AfterVideo
		}
		if row.PaymentMethod != "" {
			merged.PaymentMethod = row.PaymentMethod
		}
		if row.OTP != "" {
			merged.OTP = row.OTP
		}
	}
	return out
}
