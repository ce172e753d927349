package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"vendorhub/internal/models"
)

// UpdateOrderParams mirrors the UpdateOrders form. Empty fields are still
// sent; the upstream treats the full field set as one positional record.
type UpdateOrderParams struct {
	OrderID       string
	Price         string
	Quantity      string
	Address       string
	Slot          string
	Status        models.OrderStatus
	VendorPhone   string
	BeforeVideo   string
	AfterVideo    string
	OTP           string
	PaymentMethod models.PaymentMethod
}

func (p UpdateOrderParams) form() url.Values {
	form := url.Values{}
	form.Set("OrderID", p.OrderID)
	form.Set("Price", p.Price)
	form.Set("Quantity", p.Quantity)
	form.Set("Address", p.Address)
	form.Set("Slot", p.Slot)
	form.Set("Status", string(p.Status))
	form.Set("VendorPhone", p.VendorPhone)
	form.Set("BeforVideo", p.BeforeVideo)
	form.Set("AfterVideo", p.AfterVideo)
	form.Set("OTP", p.OTP)
	form.Set("PaymentMethod", string(p.PaymentMethod))
	return form
}

func (c *Client) AcceptLead(ctx context.Context, orderID, vendorPhone string) error {
	form := url.Values{}
	form.Set("OrderID", orderID)
	form.Set("VendorPhone", vendorPhone)

	body, err := c.postForm(ctx, "AcceptLead", form)
	if err != nil {
		return err
	}
	// The accept endpoint has no fixed confirmation string; an undecodable
	// body still counts as failure, commitment is checked by the follow-up
	// status update.
	var msg messageResponse
	if err := DecodeInto(body, &msg); err != nil {
		return fmt.Errorf("AcceptLead: %w", err)
	}
	return nil
}

func (c *Client) DeclineLead(ctx context.Context, orderID, vendorPhone string) error {
	form := url.Values{}
	form.Set("OrderID", orderID)
	form.Set("VendorPhone", vendorPhone)
	return c.callConfirmed(ctx, "DeclineLead", form, msgLeadDeclined)
}

func (c *Client) ShowLeads(ctx context.Context, vendorPhone string, status models.OrderStatus) ([]models.Lead, error) {
	form := url.Values{}
	form.Set("VendorPhone", vendorPhone)
	form.Set("Status", string(status))

	body, err := c.postForm(ctx, "ShowLeads", form)
	if err != nil {
		return nil, err
	}
	var leads []models.Lead
	if err := DecodeInto(body, &leads); err != nil {
		return nil, fmt.Errorf("ShowLeads: %w", err)
	}
	return leads, nil
}

func (c *Client) ShowOrders(ctx context.Context, vendorPhone string, status models.OrderStatus) ([]models.Order, error) {
	form := url.Values{}
	form.Set("UserID", "")
	form.Set("VendorPhone", vendorPhone)
	form.Set("Status", string(status))

	body, err := c.postForm(ctx, "ShowOrders", form)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := DecodeInto(body, &orders); err != nil {
		return nil, fmt.Errorf("ShowOrders: %w", err)
	}
	return orders, nil
}

func (c *Client) UpdateOrders(ctx context.Context, p UpdateOrderParams) error {
	return c.callConfirmed(ctx, "UpdateOrders", p.form(), msgUpdated)
}

func (c *Client) InsertTransaction(ctx context.Context, txn models.Transaction) error {
	form := url.Values{}
	form.Set("TransactionID", txn.TransactionID)
	form.Set("Amount", txn.Amount)
	form.Set("Dates", txn.Date)
	form.Set("Phone", txn.Phone)
	return c.callConfirmed(ctx, "InsertTransactionsVendor", form, msgInserted)
}

// UpdateWallet applies a balance operation ("Add" or "Deduct") to the
// vendor's wallet.
func (c *Client) UpdateWallet(ctx context.Context, phone, amount, operation string) error {
	form := url.Values{}
	form.Set("Phone", phone)
	form.Set("Balance", amount)
	form.Set("Operation", operation)
	return c.callConfirmed(ctx, "UpdateWalletVendors", form, msgUpdated)
}

func (c *Client) GetWallet(ctx context.Context, phone string) (*models.Wallet, error) {
	form := url.Values{}
	form.Set("Phone", phone)

	body, err := c.postForm(ctx, "GetWalletVendors", form)
	if err != nil {
		return nil, err
	}
	var wallets []models.Wallet
	if err := DecodeInto(body, &wallets); err != nil {
		// Some deployments return a single object instead of a list.
		var w models.Wallet
		if err2 := DecodeInto(body, &w); err2 != nil {
			return nil, fmt.Errorf("GetWalletVendors: %w", err)
		}
		return &w, nil
	}
	if len(wallets) == 0 {
		return &models.Wallet{Phone: phone}, nil
	}
	return &wallets[0], nil
}

func (c *Client) GetTransactions(ctx context.Context, phone string) ([]models.Transaction, error) {
	form := url.Values{}
	form.Set("Phone", phone)

	body, err := c.postForm(ctx, "GetTransactionsVendor", form)
	if err != nil {
		return nil, err
	}
	var txns []models.Transaction
	if err := DecodeInto(body, &txns); err != nil {
		return nil, fmt.Errorf("GetTransactionsVendor: %w", err)
	}
	return txns, nil
}

func (c *Client) UpdateCurrentLocation(ctx context.Context, loc models.Location) error {
	form := url.Values{}
	form.Set("VendorPhone", loc.VendorPhone)
	form.Set("Lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	form.Set("Lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	return c.callConfirmed(ctx, "UpdateCurrentLocations", form, msgUpdated)
}

func (c *Client) UpdateVendorProfile(ctx context.Context, p models.VendorProfile) error {
	form := url.Values{}
	form.Set("FullName", p.FullName)
	form.Set("Email", p.Email)
	form.Set("Phone", p.Phone)
	form.Set("Dob", p.Dob)
	form.Set("Verified", "")
	form.Set("Address", p.Address)
	form.Set("VenImg", p.Image)
	return c.callConfirmed(ctx, "UpdateVendorProfile", form, msgUpdated)
}

func (c *Client) InsertHubRequest(ctx context.Context, req models.HubRequest) error {
	form := url.Values{}
	form.Set("HubLoginID", req.HubLoginID)
	form.Set("VendorPhone", req.VendorPhone)
	form.Set("itemID", req.ItemID)
	form.Set("itemName", req.ItemName)
	form.Set("itemQTY", req.ItemQTY)
	return c.callConfirmed(ctx, "InsertHubRequest", form, msgInserted)
}

func (c *Client) NearBy(ctx context.Context, productName string, lat, lon float64) ([]byte, error) {
	form := url.Values{}
	form.Set("ProductName", productName)
	form.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	form.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	body, err := c.postForm(ctx, "NearBy", form)
	if err != nil {
		return nil, err
	}
	normalized, err := Normalize(body)
	if err != nil {
		return nil, fmt.Errorf("NearBy: %w", err)
	}
	return normalized, nil
}
