package leads

import (
	"context"
	"errors"
	"sync"
	"time"

	"vendorhub/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNoLeadPresented = errors.New("no lead currently presented")
	ErrLeadMismatch    = errors.New("lead is not the one presented")
	ErrLeadResolved    = errors.New("lead already resolved")
)

type EventKind string

const (
	EventOffered  EventKind = "offered"
	EventAccepted EventKind = "accepted"
	EventDeclined EventKind = "declined"
	EventExpired  EventKind = "expired"
)

// Event is what the gateway pushes to the vendor UI over the subscription.
type Event struct {
	Kind     EventKind   `json:"kind"`
	Lead     models.Lead `json:"lead"`
	Deadline time.Time   `json:"deadline,omitempty"`
}

// Remote is the slice of the upstream client the intake loop needs.
type Remote interface {
	ShowLeads(ctx context.Context, vendorPhone string, status models.OrderStatus) ([]models.Lead, error)
}

// Decider resolves a presented lead; the lifecycle controller satisfies it.
type Decider interface {
	Accept(ctx context.Context, orderID, vendorPhone string) error
	Decline(ctx context.Context, orderID, vendorPhone string) error
}

// Intake is one vendor's lead loop: poll for pending leads, present exactly
// one at a time, and auto-decline it when the decision window expires with
// no vendor action. Manual action and the timer race; the first to fire wins
// and the losing path goes inert.
type Intake struct {
	remote  Remote
	decider Decider
	logger  *zap.SugaredLogger

	phone        string
	pollInterval time.Duration
	window       time.Duration
	maxBackoff   time.Duration

	events chan Event

	mu      sync.Mutex
	current *presented
	closed  bool
}

type presented struct {
	lead     models.Lead
	deadline time.Time
	timer    *time.Timer
	resolved bool
}

func NewIntake(remote Remote, decider Decider, logger *zap.SugaredLogger, phone string, pollInterval, window, maxBackoff time.Duration) *Intake {
	return &Intake{
		remote:       remote,
		decider:      decider,
		logger:       logger,
		phone:        phone,
		pollInterval: pollInterval,
		window:       window,
		maxBackoff:   maxBackoff,
		events:       make(chan Event, 16),
	}
}

// Events is the push channel for this vendor's subscription.
func (in *Intake) Events() <-chan Event {
	return in.events
}

// Run polls until the context is cancelled. Poll failures back off
// exponentially up to maxBackoff instead of hammering the fixed interval.
func (in *Intake) Run(ctx context.Context) {
	defer in.teardown()

	delay := in.pollInterval
	for {
		if err := in.pollOnce(ctx); err != nil {
			in.logger.Warnw("lead poll failed", "vendor", in.phone, "error", err)
			delay *= 2
			if delay > in.maxBackoff {
				delay = in.maxBackoff
			}
		} else {
			delay = in.pollInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (in *Intake) pollOnce(ctx context.Context) error {
	in.mu.Lock()
	busy := in.current != nil
	in.mu.Unlock()
	if busy {
		// One lead at a time; the next surfaces after this one resolves.
		return nil
	}

	leads, err := in.remote.ShowLeads(ctx, in.phone, models.OrderPending)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		return nil
	}
	in.present(leads[0])
	return nil
}

func (in *Intake) present(lead models.Lead) {
	in.mu.Lock()
	if in.current != nil {
		in.mu.Unlock()
		return
	}
	deadline := time.Now().Add(in.window)
	p := &presented{lead: lead, deadline: deadline}
	p.timer = time.AfterFunc(in.window, func() { in.expire(lead.OrderID) })
	in.current = p
	in.mu.Unlock()

	in.emit(Event{Kind: EventOffered, Lead: lead, Deadline: deadline})
}

// Current returns the presented lead and its deadline, if any.
func (in *Intake) Current() (models.Lead, time.Time, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == nil || in.current.resolved {
		return models.Lead{}, time.Time{}, false
	}
	return in.current.lead, in.current.deadline, true
}

// Accept resolves the presented lead by accepting it. The countdown is
// cancelled before the remote call; if the call fails the lead stays pending
// upstream and will be re-presented by a later poll.
func (in *Intake) Accept(ctx context.Context, orderID string) error {
	if err := in.claim(orderID); err != nil {
		return err
	}
	err := in.decider.Accept(ctx, orderID, in.phone)
	in.finish()
	if err != nil {
		return err
	}
	in.emit(Event{Kind: EventAccepted, Lead: models.Lead{OrderID: orderID, VendorPhone: in.phone}})
	return nil
}

// Decline resolves the presented lead by declining it.
func (in *Intake) Decline(ctx context.Context, orderID string) error {
	if err := in.claim(orderID); err != nil {
		return err
	}
	err := in.decider.Decline(ctx, orderID, in.phone)
	in.finish()
	if err != nil {
		return err
	}
	in.emit(Event{Kind: EventDeclined, Lead: models.Lead{OrderID: orderID, VendorPhone: in.phone}})
	return nil
}

// claim marks the presented lead resolved and stops the countdown, so the
// expiry path can no longer fire.
func (in *Intake) claim(orderID string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == nil {
		return ErrNoLeadPresented
	}
	if in.current.lead.OrderID != orderID {
		return ErrLeadMismatch
	}
	if in.current.resolved {
		return ErrLeadResolved
	}
	in.current.resolved = true
	in.current.timer.Stop()
	return nil
}

// finish clears the slot so the next poll can surface the next lead.
func (in *Intake) finish() {
	in.mu.Lock()
	in.current = nil
	in.mu.Unlock()
}

// expire is the countdown path: exactly one auto-decline, and only if no
// manual action claimed the lead first.
func (in *Intake) expire(orderID string) {
	in.mu.Lock()
	if in.current == nil || in.current.resolved || in.current.lead.OrderID != orderID {
		in.mu.Unlock()
		return
	}
	in.current.resolved = true
	lead := in.current.lead
	in.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := in.decider.Decline(ctx, lead.OrderID, in.phone); err != nil {
		in.logger.Warnw("auto-decline failed", "vendor", in.phone, "order", lead.OrderID, "error", err)
	}
	in.finish()
	in.emit(Event{Kind: EventExpired, Lead: lead})
}

// emit holds the mutex so it can never race teardown's close. An expire
// goroutine may still be mid-decline when the loop tears down; its trailing
// emit must land here after closed is set, not on a closed channel.
func (in *Intake) emit(ev Event) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	select {
	case in.events <- ev:
	default:
		in.logger.Warnw("lead event dropped, subscriber too slow", "vendor", in.phone, "kind", ev.Kind)
	}
}

func (in *Intake) teardown() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current != nil && in.current.timer != nil {
		in.current.timer.Stop()
	}
	in.current = nil
	in.closed = true
	close(in.events)
}
