package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const vendorPhoneKey contextKey = "vendorPhone"

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/session", handler.CreateSession)

	r.Group(func(r chi.Router) {
		r.Use(handler.requireSession)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/current", handler.CurrentLead)
			r.Get("/subscribe", handler.SubscribeLeads)
			r.Post("/{orderId}/accept", handler.AcceptLead)
			r.Post("/{orderId}/decline", handler.DeclineLead)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", handler.ListOrders)
			r.Post("/{orderId}/start", handler.StartService)
			r.Post("/{orderId}/before-video", handler.UploadBeforeVideo)
			r.Post("/{orderId}/payment", handler.ConfirmPayment)
			r.Post("/{orderId}/after-video", handler.UploadAfterVideo)
			r.Post("/{orderId}/cancel", handler.CancelService)
		})

		r.Get("/wallet", handler.GetWallet)
		r.Get("/transactions", handler.ListTransactions)
		r.Post("/location", handler.UpdateLocation)
		r.Put("/profile", handler.UpdateProfile)
		r.Post("/hub-requests", handler.CreateHubRequest)
		r.Get("/nearby", handler.NearBy)
	})

	return &Server{Router: r}
}

// requireSession validates the bearer token and threads the vendor phone
// through the request context.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			// WebSocket clients cannot set headers; allow a query token.
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		phone, err := h.Auth.ValidateToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}
		ctx := context.WithValue(r.Context(), vendorPhoneKey, phone)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func vendorPhone(r *http.Request) string {
	phone, _ := r.Context().Value(vendorPhoneKey).(string)
	return phone
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
