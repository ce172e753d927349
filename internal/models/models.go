package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderDone      OrderStatus = "Done"
	OrderOnservice OrderStatus = "Onservice"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
	OrderDeclined  OrderStatus = "Declined"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Terminal reports whether the vendor can take no further action on an
// order in this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderDeclined:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentOnline PaymentMethod = "Online"
)

// Order is the vendor-visible projection of an upstream order. The upstream
// wire names are preserved in the form/json tags, including the historical
// "BeforVideo" spelling.
type Order struct {
	ID            int64         `json:"ID"`
	OrderID       string        `json:"OrderID"`
	UserID        string        `json:"UserID"`
	OrderType     string        `json:"OrderType"`
	ItemImages    string        `json:"ItemImages"`
	ItemName      string        `json:"ItemName"`
	Price         string        `json:"Price"`
	Quantity      string        `json:"Quantity"`
	Address       string        `json:"Address"`
	Slot          string        `json:"Slot"`
	SlotDatetime  string        `json:"SlotDatetime"`
	OrderDatetime string        `json:"OrderDatetime"`
	Status        OrderStatus   `json:"Status"`
	VendorPhone   string        `json:"VendorPhone"`
	OTP           string        `json:"OTP"`
	BeforeVideo   string        `json:"BeforVideo"`
	AfterVideo    string        `json:"AfterVideo"`
	PaymentMethod PaymentMethod `json:"PaymentMethod"`
}

// The three Onservice gates are derived state, not statuses.

func (o *Order) BeforeVideoDone() bool {
	return o.BeforeVideo != ""
}

func (o *Order) PaymentDone() bool {
	return o.PaymentMethod != ""
}

func (o *Order) AfterVideoDone() bool {
	return o.AfterVideo != ""
}

// Lead is a pending order offered to a vendor for accept/decline.
type Lead struct {
	ID          int64       `json:"id"`
	OrderID     string      `json:"OrderID"`
	VendorPhone string      `json:"VendorPhone"`
	Status      OrderStatus `json:"Status"`
}

// Transaction is an immutable settlement record.
type Transaction struct {
	TransactionID string `json:"TransactionID"`
	Amount        string `json:"Amount"`
	Date          string `json:"Dates"`
	Phone         string `json:"Phone"`
}

type Wallet struct {
	Phone   string  `json:"Phone"`
	Balance float64 `json:"WalletBalance"`
}

type VendorProfile struct {
	FullName string `json:"FullName"`
	Email    string `json:"Email"`
	Phone    string `json:"Phone"`
	Dob      string `json:"Dob"`
	Address  string `json:"Address"`
	Image    string `json:"VenImg"`
}

type Location struct {
	VendorPhone string  `json:"VendorPhone"`
	Lat         float64 `json:"Lat"`
	Lon         float64 `json:"Lon"`
}

type HubRequest struct {
	HubLoginID  string `json:"HubLoginID"`
	VendorPhone string `json:"VendorPhone"`
	ItemID      string `json:"itemID"`
	ItemName    string `json:"itemName"`
	ItemQTY     string `json:"itemQTY"`
}

// Settlement is the journal row for a payment confirmation. Degraded rows
// (payment committed upstream but a side step failed) stay unreconciled until
// the worker replays the missing steps.
type Settlement struct {
	SettlementID  string
	OrderID       string
	VendorPhone   string
	TransactionID string
	Amount        string
	Method        PaymentMethod
	TxnLogged     bool
	WalletDone    bool
	OrderUpdated  bool
	Reconciled    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Pending reports whether any settlement step still needs replay.
func (s *Settlement) Pending() bool {
	if !s.OrderUpdated {
		return false // never committed, nothing to replay
	}
	if !s.TxnLogged {
		return true
	}
	return s.Method == PaymentCash && !s.WalletDone
}

type Transition struct {
	OrderID     string
	VendorPhone string
	From        OrderStatus
	To          OrderStatus
	Action      string
	CreatedAt   time.Time
}
