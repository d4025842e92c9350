package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"paineluriel/backend/internal/cache"
	"paineluriel/backend/internal/cart"
	"paineluriel/backend/internal/checkout"
	"paineluriel/backend/internal/content"
	"paineluriel/backend/internal/domain"
	"paineluriel/backend/internal/events"
	"paineluriel/backend/internal/gateway"
	"paineluriel/backend/internal/store/memory"
)

// scriptedGateway returns canned gateway responses and records the last
// payload the relay forwarded.
type scriptedGateway struct {
	mu          sync.Mutex
	createResp  gateway.Response
	createErr   error
	statusResp  gateway.Response
	statusErr   error
	lastPayload domain.ChargePayload
}

func (g *scriptedGateway) CreateCharge(_ context.Context, payload domain.ChargePayload) (gateway.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastPayload = payload
	return g.createResp, g.createErr
}

func (g *scriptedGateway) ChargeStatus(context.Context, string) (gateway.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusResp, g.statusErr
}

func (g *scriptedGateway) sent() domain.ChargePayload {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastPayload
}

// newTestAPI builds a full API on in-memory backends and the scripted
// gateway so handler tests exercise the complete request path.
func newTestAPI(t *testing.T, gw *scriptedGateway) *API {
	t.Helper()

	catalog := content.NewCatalog()
	carts := cart.New(cache.NewMemoryCartStore(), catalog, time.Hour)
	repo := memory.New()
	manager := checkout.NewManager(gw, carts, repo, events.NoopPublisher{}, time.Hour, time.Hour)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	auth, err := NewAuthManager("test-secret-key", time.Hour, "admin123")
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	notifications := content.NewNotificationFeed(catalog, 1)

	return New(carts, manager, gw, repo, catalog, notifications, auth, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
	return body
}

func TestRelayCreate_PassesGatewayBodyThrough(t *testing.T) {
	gw := &scriptedGateway{
		createResp: gateway.Response{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"data":{"external_id":"ext-1","pix":{"code":"00020126","qrcode_base64":"iVBOR"}}}`),
		},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/checkout/create", map[string]any{
		"amount": 1290,
		"buyer":  map[string]string{"name": "Maria Silva", "email": "maria@example.com"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok || data["external_id"] != "ext-1" {
		t.Fatalf("gateway body not passed through: %v", body)
	}

	sent := gw.sent()
	if sent.Amount != 1290 || sent.Buyer.Name != "Maria Silva" {
		t.Fatalf("unexpected forwarded payload: %+v", sent)
	}
	if sent.Offer.ID != "oferta_promocional" || sent.Tracking.UTMCampaign != "checkout" {
		t.Fatalf("payload not normalized: %+v", sent)
	}
}

func TestRelayCreate_Validation(t *testing.T) {
	gw := &scriptedGateway{}
	handler := newTestAPI(t, gw).Handler()

	cases := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			"missing amount",
			map[string]any{"buyer": map[string]string{"name": "Maria Silva", "email": "maria@example.com"}},
			"Campos obrigatorios ausentes",
		},
		{
			"missing email",
			map[string]any{"amount": 1290, "buyer": map[string]string{"name": "Maria Silva"}},
			"Campos obrigatorios ausentes",
		},
		{
			"single name",
			map[string]any{"amount": 1290, "buyer": map[string]string{"name": "Maria", "email": "maria@example.com"}},
			"buyer.name precisa ser Nome e Sobrenome.",
		},
	}

	for _, tc := range cases {
		rec := doJSON(t, handler, http.MethodPost, "/api/checkout/create", tc.payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != tc.want {
			t.Fatalf("%s: error = %v, want %q", tc.name, body["error"], tc.want)
		}
	}

	if gw.sent().Amount != 0 {
		t.Fatalf("gateway must not be called on validation failure")
	}
}

func TestRelayCreate_GatewayRejection(t *testing.T) {
	gw := &scriptedGateway{
		createResp: gateway.Response{
			StatusCode: http.StatusPaymentRequired,
			Body:       []byte(`{"errors":[{"message":"Saldo insuficiente"}]}`),
		},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/checkout/create", map[string]any{
		"amount": 1290,
		"buyer":  map[string]string{"name": "Maria Silva", "email": "maria@example.com"},
	})

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 passed through, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Saldo insuficiente" {
		t.Fatalf("error = %v", body["error"])
	}
	if body["details"] == nil || body["sent"] == nil {
		t.Fatalf("expected details and sent in rejection body: %v", body)
	}
}

func TestRelayCreate_GatewayRejectionWithoutMessage(t *testing.T) {
	gw := &scriptedGateway{
		createResp: gateway.Response{StatusCode: http.StatusBadGateway, Body: []byte(`<html>bad</html>`)},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/checkout/create", map[string]any{
		"amount": 1290,
		"buyer":  map[string]string{"name": "Maria Silva", "email": "maria@example.com"},
	})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Erro ao criar checkout" {
		t.Fatalf("error = %v, want fallback message", body["error"])
	}
}

func TestRelayCreate_TransportError(t *testing.T) {
	gw := &scriptedGateway{createErr: context.DeadlineExceeded}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/checkout/create", map[string]any{
		"amount": 1290,
		"buyer":  map[string]string{"name": "Maria Silva", "email": "maria@example.com"},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Erro interno do servidor" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestRelayStatus_MissingExternalID(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/checkout/status/", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "external_id ausente" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestRelayStatus_PassesBodyThrough(t *testing.T) {
	gw := &scriptedGateway{
		statusResp: gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"status":"paid"}}`)},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/checkout/status/ext-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]any)
	if !ok || data["status"] != "paid" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRelayStatus_GatewayRejection(t *testing.T) {
	gw := &scriptedGateway{
		statusResp: gateway.Response{StatusCode: http.StatusNotFound, Body: []byte(`{"message":"Cobranca nao encontrada"}`)},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/checkout/status/ext-404", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 passed through, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Cobranca nao encontrada" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestRelayStatus_UnparseableBodyIsServerError(t *testing.T) {
	gw := &scriptedGateway{
		statusResp: gateway.Response{StatusCode: http.StatusOK, Body: []byte(`<html>oops</html>`)},
	}
	handler := newTestAPI(t, gw).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/checkout/status/ext-1", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Erro interno do servidor" {
		t.Fatalf("error = %v", body["error"])
	}
}
