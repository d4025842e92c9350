// Package httpapi exposes the storefront over HTTP: the stateless
// checkout relay, the session cart, the checkout flows, static content,
// and a small admin surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"paineluriel/backend/internal/cart"
	"paineluriel/backend/internal/checkout"
	"paineluriel/backend/internal/content"
	"paineluriel/backend/internal/domain"
	"paineluriel/backend/internal/gateway"
	"paineluriel/backend/internal/store"
)

type API struct {
	carts         *cart.Service
	manager       *checkout.Manager
	gw            checkout.Gateway
	repo          store.Repository
	catalog       *content.Catalog
	notifications *content.NotificationFeed
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(carts *cart.Service, manager *checkout.Manager, gw checkout.Gateway, repo store.Repository, catalog *content.Catalog, notifications *content.NotificationFeed, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		carts:         carts,
		manager:       manager,
		gw:            gw,
		repo:          repo,
		catalog:       catalog,
		notifications: notifications,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/checkout/create", a.handleRelayCreate)
	mux.HandleFunc("/api/checkout/status/", a.handleRelayStatus)

	mux.HandleFunc("/api/v1/cart/sessions", a.handleCartSessions)
	mux.HandleFunc("/api/v1/cart/sessions/", a.handleCartSessionActions)

	mux.HandleFunc("/api/v1/checkout/flows", a.handleFlows)
	mux.HandleFunc("/api/v1/checkout/flows/", a.handleFlowActions)

	mux.HandleFunc("/api/v1/content/products", a.handleProducts)
	mux.HandleFunc("/api/v1/content/faq", a.handleFAQ)
	mux.HandleFunc("/api/v1/content/reviews", a.handleReviews)
	mux.HandleFunc("/api/v1/content/influencers", a.handleInfluencers)
	mux.HandleFunc("/api/v1/notifications/next", a.handleNextNotification)

	mux.HandleFunc("/api/v1/admin/login", a.handleLogin)
	mux.HandleFunc("/api/v1/admin/charges", a.requireAdmin(a.handleCharges))

	return a.withMiddleware(mux)
}

// Relay endpoints. These are stateless: they normalize the caller's
// body, forward it to the pix gateway, and pass the answer back.

func (a *API) handleRelayCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ChargeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Erro interno do servidor"})
		return
	}

	if req.Amount == 0 || strings.TrimSpace(req.Buyer.Name) == "" || strings.TrimSpace(req.Buyer.Email) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Campos obrigatorios ausentes"})
		return
	}
	if len(strings.Fields(req.Buyer.Name)) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "buyer.name precisa ser Nome e Sobrenome."})
		return
	}

	payload := gateway.BuildPayload(req)

	resp, err := a.gw.CreateCharge(r.Context(), payload)
	if err != nil {
		log.Printf("relay: create charge: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Erro interno do servidor"})
		return
	}

	// An unparseable gateway body is treated as an empty object on both
	// the success and failure paths.
	var details map[string]any
	if err := json.Unmarshal(resp.Body, &details); err != nil {
		details = map[string]any{}
	}

	if !resp.OK() {
		writeJSON(w, resp.StatusCode, map[string]any{
			"error":   gateway.ExtractMessage(resp.Body, "Erro ao criar checkout"),
			"details": details,
			"sent":    payload,
		})
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (a *API) handleRelayStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	externalID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/checkout/status/"), "/")
	if externalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "external_id ausente"})
		return
	}

	resp, err := a.gw.ChargeStatus(r.Context(), externalID)
	if err != nil {
		log.Printf("relay: charge status external_id=%s: %v", externalID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Erro interno do servidor"})
		return
	}

	// Unlike the create relay, an unparseable status body is an error on
	// both paths.
	var data map[string]any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Erro interno do servidor"})
		return
	}

	if !resp.OK() {
		msg, _ := data["message"].(string)
		if msg == "" {
			msg = "Erro ao consultar status"
		}
		writeJSON(w, resp.StatusCode, map[string]any{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// Cart endpoints.

func (a *API) handleCartSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	view, err := a.carts.CreateSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cart": view})
}

func (a *API) handleCartSessionActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/cart/sessions/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id required"))
		return
	}

	parts := strings.Split(tail, "/")
	sessionID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleCartGet(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "items":
		a.handleCartAddItem(w, r, sessionID)
	case len(parts) == 3 && parts[1] == "items":
		a.handleCartItemActions(w, r, sessionID, parts[2])
	case len(parts) == 2 && parts[1] == "coupon":
		a.handleCartCoupon(w, r, sessionID)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown cart action"))
	}
}

func (a *API) handleCartGet(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view, err := a.carts.Get(r.Context(), sessionID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleCartAddItem(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := a.carts.AddItem(r.Context(), sessionID, req.ProductID)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": view})
}

func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request, sessionID string, productID string) {
	switch r.Method {
	case http.MethodPatch:
		var req domain.UpdateQuantityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.carts.UpdateQuantity(r.Context(), sessionID, productID, req.Quantity)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": view})
	case http.MethodDelete:
		view, err := a.carts.RemoveItem(r.Context(), sessionID, productID)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": view})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartCoupon(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodPost:
		var req domain.ApplyCouponRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.carts.ApplyCoupon(r.Context(), sessionID, req.Code)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": view})
	case http.MethodDelete:
		view, err := a.carts.RemoveCoupon(r.Context(), sessionID)
		if err != nil {
			writeCartError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": view})
	default:
		writeMethodNotAllowed(w)
	}
}

// Checkout flow endpoints.

func (a *API) handleFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.OpenFlowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := a.manager.Open(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusUnprocessableEntity, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"flow": state})
}

func (a *API) handleFlowActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/checkout/flows/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("flow id required"))
		return
	}

	parts := strings.Split(tail, "/")
	flowID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			state, err := a.manager.Get(flowID)
			if err != nil {
				writeFlowError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"flow": state})
		case http.MethodDelete:
			a.manager.Close(flowID)
			w.WriteHeader(http.StatusNoContent)
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	switch parts[1] {
	case "submit":
		var form domain.BuyerForm
		if err := decodeJSON(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		state, err := a.manager.Submit(r.Context(), flowID, form)
		switch {
		case errors.Is(err, checkout.ErrValidation):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"flow": state})
		case errors.Is(err, checkout.ErrChargeInFlight):
			writeJSON(w, http.StatusConflict, map[string]any{"flow": state})
		case err != nil:
			writeFlowError(w, err)
		default:
			writeJSON(w, http.StatusOK, map[string]any{"flow": state})
		}
	case "back":
		state, err := a.manager.Back(flowID)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flow": state})
	case "retry":
		state, err := a.manager.Retry(flowID)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flow": state})
	case "copy":
		state, err := a.manager.Copy(flowID)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"flow": state})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown flow action"))
	}
}

// Content endpoints.

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": a.catalog.Products()})
}

func (a *API) handleFAQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"faq": content.FAQ()})
}

func (a *API) handleReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": content.Reviews()})
}

func (a *API) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"influencers": content.Influencers()})
}

func (a *API) handleNextNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notification": a.notifications.Next()})
}

// Admin endpoints.

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if a.auth == nil {
		writeError(w, http.StatusNotFound, errors.New("admin surface disabled"))
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCharges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	attempts, err := a.repo.ListChargeAttempts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"charges": attempts})
}

func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.auth == nil {
			writeError(w, http.StatusNotFound, errors.New("admin surface disabled"))
			return
		}
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		if actor.Role != "admin" {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}
		next(w, r)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, cart.ErrUnknownProduct):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeFlowError(w http.ResponseWriter, err error) {
	if errors.Is(err, checkout.ErrFlowNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx messages are generic so internal details never reach clients;
	// 4xx messages are user-facing and pass through.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
