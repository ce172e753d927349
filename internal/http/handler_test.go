package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vendorhub/internal/auth"
	"vendorhub/internal/leads"
	"vendorhub/internal/lifecycle"
	"vendorhub/internal/payments"
	"vendorhub/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstream fakes the marketplace .asmx API per endpoint.
type upstream struct {
	mu        sync.Mutex
	calls     []string
	responses map[string]string
}

func (u *upstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/APIs/APIs.asmx/")
		u.mu.Lock()
		u.calls = append(u.calls, method)
		resp, ok := u.responses[method]
		u.mu.Unlock()
		if !ok {
			http.Error(w, "unknown method", http.StatusNotFound)
			return
		}
		w.Write([]byte(resp))
	}
}

func (u *upstream) called(method string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		if c == method {
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T, up *upstream) (*Server, *auth.Manager) {
	t.Helper()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	logger := zap.NewNop().Sugar()
	client := remote.NewClient(srv.URL, "test-token", 5*time.Second, logger)
	settler := payments.NewService(client, nil, logger)
	controller := lifecycle.NewController(client, settler, nil, logger)
	leadManager := leads.NewManager(client, controller, logger, 10*time.Millisecond, time.Second, 100*time.Millisecond)
	sessions := auth.NewManager("test-signing-key", time.Hour)

	h := NewHandler(controller, leadManager, client, sessions, logger)
	return NewServer(h), sessions
}

func doJSON(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionRequiresPhone(t *testing.T) {
	srv, _ := newTestServer(t, &upstream{responses: map[string]string{}})
	rec := doJSON(t, srv.Router, http.MethodPost, "/session", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, &upstream{responses: map[string]string{}})
	rec := doJSON(t, srv.Router, http.MethodGet, "/orders?status=Done", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAcceptLeadFlow(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"AcceptLead":   `{"Message":"Lead Accepted"}`,
		"UpdateOrders": `"{\"Message\":\"Updated Successfully!\"}"`,
	}}
	srv, sessions := newTestServer(t, up)
	token, err := sessions.BuildToken("9999999999")
	require.NoError(t, err)

	rec := doJSON(t, srv.Router, http.MethodPost, "/leads/OD100/accept", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["committed"])
	assert.Equal(t, 1, up.called("AcceptLead"))
	assert.Equal(t, 1, up.called("UpdateOrders"))
	assert.Equal(t, 0, up.called("DeclineLead"))
}

func TestAcceptLeadNotCommittedOnUpstreamFailure(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"AcceptLead": `{"Message":"Lead Accepted"}`,
		// UpdateOrders missing -> 404 from upstream
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/leads/OD100/accept", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestConfirmPaymentCashFlow(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders":               `[{"OrderID":"OD100","VendorPhone":"9999999999","Status":"Onservice","BeforVideo":"clip"}]`,
		"InsertTransactionsVendor": `{"Message":"Inserted Successfully!"}`,
		"UpdateWalletVendors":      `<string>{"Message":"Updated Successfully!"}</string>`,
		"UpdateOrders":             `{"Message":"Updated Successfully!"}`,
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/orders/OD100/payment", token,
		map[string]any{"amount": 500, "method": "Cash"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["committed"])
	assert.Equal(t, true, resp["walletCredited"])
	assert.Equal(t, false, resp["degraded"])
	assert.Equal(t, 1, up.called("InsertTransactionsVendor"))
	assert.Equal(t, 1, up.called("UpdateWalletVendors"))
}

func TestConfirmPaymentDegradedSurfacesWarning(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders":          `[{"OrderID":"OD100","VendorPhone":"9999999999","Status":"Onservice","BeforVideo":"clip"}]`,
		"UpdateWalletVendors": `{"Message":"Updated Successfully!"}`,
		"UpdateOrders":        `{"Message":"Updated Successfully!"}`,
		// InsertTransactionsVendor missing -> transaction log fails
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/orders/OD100/payment", token,
		map[string]any{"amount": 500, "method": "Cash"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["degraded"])
	assert.Contains(t, resp["warning"], "will be replayed")
}

func TestConfirmPaymentDegradedOnWalletFailure(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders":               `[{"OrderID":"OD100","VendorPhone":"9999999999","Status":"Onservice","BeforVideo":"clip"}]`,
		"InsertTransactionsVendor": `{"Message":"Inserted Successfully!"}`,
		"UpdateOrders":             `{"Message":"Updated Successfully!"}`,
		// UpdateWalletVendors missing -> cash credit fails
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/orders/OD100/payment", token,
		map[string]any{"amount": 500, "method": "Cash"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["committed"])
	assert.Equal(t, false, resp["walletCredited"])
	assert.Equal(t, true, resp["degraded"])
	assert.Contains(t, resp["warning"], "will be replayed")
}

func TestConfirmPaymentRejectedBeforeVideoGate(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders": `[{"OrderID":"OD100","VendorPhone":"9999999999","Status":"Onservice"}]`,
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/orders/OD100/payment", token,
		map[string]any{"amount": 500, "method": "Cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, up.called("InsertTransactionsVendor"))
}

func TestStartServiceWrongOTP(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders": `[{"OrderID":"OD100","VendorPhone":"9999999999","Status":"Done","OTP":"4321"}]`,
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodPost, "/orders/OD100/start", token,
		map[string]string{"otp": "1111"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListOrders(t *testing.T) {
	up := &upstream{responses: map[string]string{
		"ShowOrders": `[{"OrderID":"OD100","ItemName":"Cleaning","Status":"Done"},{"OrderID":"OD100","ItemName":"Repair","Status":"Done"}]`,
	}}
	srv, sessions := newTestServer(t, up)
	token, _ := sessions.BuildToken("9999999999")

	rec := doJSON(t, srv.Router, http.MethodGet, "/orders?status=Done", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Orders []struct {
			OrderID string `json:"OrderID"`
		} `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Orders, 1, "rows merge to one order per OrderID")
}
