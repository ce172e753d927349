package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"vendorhub/internal/auth"
	"vendorhub/internal/leads"
	"vendorhub/internal/lifecycle"
	"vendorhub/internal/models"
	"vendorhub/internal/remote"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Lifecycle *lifecycle.Controller
	Leads     *leads.Manager
	Remote    *remote.Client
	Auth      *auth.Manager
	Logger    *zap.SugaredLogger
}

func NewHandler(lc *lifecycle.Controller, lm *leads.Manager, rc *remote.Client, am *auth.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{Lifecycle: lc, Leads: lm, Remote: rc, Auth: am, Logger: logger}
}

type sessionRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	token, err := h.Auth.BuildToken(req.Phone)
	if err != nil {
		h.Logger.Errorw("build session token failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) CurrentLead(w http.ResponseWriter, r *http.Request) {
	intake, ok := h.Leads.Lookup(vendorPhone(r))
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"lead": nil})
		return
	}
	lead, deadline, ok := intake.Current()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"lead": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead, "deadline": deadline})
}

// AcceptLead resolves the presented lead when an intake loop is running, so
// its countdown is cancelled; without one it goes straight to the lifecycle
// controller.
func (h *Handler) AcceptLead(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	phone := vendorPhone(r)

	var err error
	if intake, ok := h.Leads.Lookup(phone); ok {
		err = intake.Accept(r.Context(), orderID)
	} else {
		err = h.Lifecycle.Accept(r.Context(), orderID, phone)
	}
	if err != nil {
		h.writeLifecycleError(w, "accept lead failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": models.OrderDone, "committed": true})
}

func (h *Handler) DeclineLead(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	phone := vendorPhone(r)

	var err error
	if intake, ok := h.Leads.Lookup(phone); ok {
		err = intake.Decline(r.Context(), orderID)
	} else {
		err = h.Lifecycle.Decline(r.Context(), orderID, phone)
	}
	if err != nil {
		h.writeLifecycleError(w, "decline lead failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": models.OrderDeclined, "committed": true})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.OrderDone
	}
	orders, err := h.Lifecycle.Orders(r.Context(), vendorPhone(r), status)
	if err != nil {
		h.writeLifecycleError(w, "list orders failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type startServiceRequest struct {
	OTP string `json:"otp"`
}

func (h *Handler) StartService(w http.ResponseWriter, r *http.Request) {
	var req startServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "otp is required")
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Lifecycle.StartService(r.Context(), orderID, vendorPhone(r), req.OTP); err != nil {
		h.writeLifecycleError(w, "start service failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": models.OrderOnservice, "committed": true})
}

type videoRequest struct {
	Video string `json:"video"`
}

func (h *Handler) UploadBeforeVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Video == "" {
		writeError(w, http.StatusBadRequest, "video payload is required")
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Lifecycle.UploadBeforeVideo(r.Context(), orderID, vendorPhone(r), req.Video); err != nil {
		h.writeLifecycleError(w, "before video upload failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "gate": "before-video", "committed": true})
}

type paymentRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "positive amount is required")
		return
	}
	orderID := chi.URLParam(r, "orderId")
	result, err := h.Lifecycle.ConfirmPayment(r.Context(), orderID, vendorPhone(r), req.Amount, models.PaymentMethod(req.Method))
	if err != nil {
		h.writeLifecycleError(w, "confirm payment failed", err)
		return
	}

	resp := map[string]any{
		"orderId":        orderID,
		"transactionId":  result.TransactionID,
		"committed":      result.Committed,
		"transactionLog": result.TxnLogged,
		"walletCredited": result.WalletDone,
		"degraded":       result.Degraded(),
	}
	if result.Degraded() {
		resp["warning"] = "payment recorded, but a settlement step failed and will be replayed"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) UploadAfterVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Video == "" {
		writeError(w, http.StatusBadRequest, "video payload is required")
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if err := h.Lifecycle.UploadAfterVideo(r.Context(), orderID, vendorPhone(r), req.Video); err != nil {
		h.writeLifecycleError(w, "after video upload failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": models.OrderCompleted, "committed": true})
}

func (h *Handler) CancelService(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if err := h.Lifecycle.CancelService(r.Context(), orderID, vendorPhone(r)); err != nil {
		h.writeLifecycleError(w, "cancel service failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": models.OrderCancelled, "committed": true})
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.Remote.GetWallet(r.Context(), vendorPhone(r))
	if err != nil {
		h.writeLifecycleError(w, "wallet fetch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.Remote.GetTransactions(r.Context(), vendorPhone(r))
	if err != nil {
		h.writeLifecycleError(w, "transaction fetch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	loc := models.Location{VendorPhone: vendorPhone(r), Lat: req.Lat, Lon: req.Lon}
	if err := h.Remote.UpdateCurrentLocation(r.Context(), loc); err != nil {
		h.writeLifecycleError(w, "location update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"committed": true})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.VendorProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	profile.Phone = vendorPhone(r)
	if err := h.Remote.UpdateVendorProfile(r.Context(), profile); err != nil {
		h.writeLifecycleError(w, "profile update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"committed": true})
}

func (h *Handler) CreateHubRequest(w http.ResponseWriter, r *http.Request) {
	var req models.HubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "itemID is required")
		return
	}
	req.VendorPhone = vendorPhone(r)
	if err := h.Remote.InsertHubRequest(r.Context(), req); err != nil {
		h.writeLifecycleError(w, "hub request failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"committed": true})
}

func (h *Handler) NearBy(w http.ResponseWriter, r *http.Request) {
	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, _ := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	raw, err := h.Remote.NearBy(r.Context(), r.URL.Query().Get("product"), lat, lon)
	if err != nil {
		h.writeLifecycleError(w, "nearby search failed", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// writeLifecycleError maps sentinel errors to HTTP statuses. Everything the
// controller rejected left state unchanged; remote failures are reported as
// not committed, never as silent success.
func (h *Handler) writeLifecycleError(w http.ResponseWriter, logMsg string, err error) {
	h.Logger.Warnw(logMsg, "error", err)
	switch {
	case errors.Is(err, lifecycle.ErrOrderNotFound),
		errors.Is(err, leads.ErrNoLeadPresented),
		errors.Is(err, leads.ErrLeadMismatch):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrWrongOTP):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, lifecycle.ErrBeforeVideoSet),
		errors.Is(err, lifecycle.ErrBeforeVideoNeeded),
		errors.Is(err, lifecycle.ErrPaymentRecorded),
		errors.Is(err, lifecycle.ErrPaymentNeeded),
		errors.Is(err, lifecycle.ErrAfterVideoSet),
		errors.Is(err, lifecycle.ErrInvalidMethod),
		errors.Is(err, leads.ErrLeadResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrBusy):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, remote.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, "upstream rejected the request token")
	case errors.Is(err, remote.ErrStatus),
		errors.Is(err, remote.ErrUnconfirmed),
		errors.Is(err, remote.ErrUndecodable),
		errors.Is(err, lifecycle.ErrNotCompleted):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
