package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"paineluriel/backend/internal/gateway"
)

func createSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions", map[string]any{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	cartBody, ok := body["cart"].(map[string]any)
	if !ok {
		t.Fatalf("missing cart in response: %v", body)
	}
	id, _ := cartBody["id"].(string)
	if id == "" {
		t.Fatalf("missing session id: %v", cartBody)
	}
	return id
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestCartLifecycleOverHTTP(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()
	sessionID := createSession(t, handler)

	// Add the android panel twice; quantity should increment.
	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/items", map[string]string{"product_id": "painel-android"})
		if rec.Code != http.StatusOK {
			t.Fatalf("add item: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cart/sessions/"+sessionID, nil)
	body := decodeBody(t, rec)
	cartBody := body["cart"].(map[string]any)
	items := cartBody["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(items))
	}
	if qty := items[0].(map[string]any)["quantity"].(float64); qty != 2 {
		t.Fatalf("quantity = %v, want 2", qty)
	}

	// Set quantity explicitly.
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/cart/sessions/"+sessionID+"/items/painel-android", map[string]int{"quantity": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("update quantity: expected 200, got %d", rec.Code)
	}

	// Apply a valid coupon.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/coupon", map[string]string{"code": "URIEL10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply coupon: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	cartBody = body["cart"].(map[string]any)
	if cartBody["applied_coupon"] != "URIEL10" {
		t.Fatalf("applied_coupon = %v", cartBody["applied_coupon"])
	}

	// Unknown coupon keeps 200 but records the error on the cart.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/coupon", map[string]string{"code": "NOPE"})
	if rec.Code != http.StatusOK {
		t.Fatalf("invalid coupon: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	cartBody = body["cart"].(map[string]any)
	if cartBody["coupon_error"] != "Cupom invalido" {
		t.Fatalf("coupon_error = %v", cartBody["coupon_error"])
	}

	// Remove the item.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/cart/sessions/"+sessionID+"/items/painel-android", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove item: expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	cartBody = body["cart"].(map[string]any)
	if count := cartBody["count"].(float64); count != 0 {
		t.Fatalf("count = %v after removal", count)
	}
}

func TestCartUnknownSessionAndProduct(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/cart/sessions/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", rec.Code)
	}

	sessionID := createSession(t, handler)
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/items", map[string]string{"product_id": "not-a-product"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown product: expected 422, got %d", rec.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	gw := &scriptedGateway{
		createResp: gateway.Response{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"data":{"external_id":"ext-1","pix":{"code":"00020126","qrcode_base64":"iVBOR"}}}`),
		},
		statusResp: gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"status":"pending"}}`)},
	}
	handler := newTestAPI(t, gw).Handler()

	sessionID := createSession(t, handler)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/cart/sessions/"+sessionID+"/items", map[string]string{"product_id": "painel-iphone"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: got %d", rec.Code)
	}

	// Opening a flow for an empty cart is rejected.
	emptySession := createSession(t, handler)
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows", map[string]string{"session_id": emptySession})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty cart flow: expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows", map[string]string{"session_id": sessionID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open flow: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	flow := body["flow"].(map[string]any)
	flowID := flow["id"].(string)
	if flow["step"] != "form" {
		t.Fatalf("step = %v, want form", flow["step"])
	}
	if flow["amount_cents"].(float64) != 1990 {
		t.Fatalf("amount_cents = %v, want 1990", flow["amount_cents"])
	}

	// Invalid form comes back as 422 with field errors.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows/"+flowID+"/submit", map[string]string{"name": "Maria", "email": "maria@example.com"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid submit: expected 422, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	flow = body["flow"].(map[string]any)
	fieldErrors := flow["field_errors"].(map[string]any)
	if fieldErrors["name"] != "Informe nome e sobrenome" {
		t.Fatalf("field error = %v", fieldErrors["name"])
	}

	// Valid form creates the charge.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows/"+flowID+"/submit", map[string]string{"name": "Maria Silva", "email": "maria@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	flow = body["flow"].(map[string]any)
	if flow["step"] != "qrcode" || flow["pix_code"] != "00020126" {
		t.Fatalf("unexpected flow state: %v", flow)
	}

	// A second submit is rejected with 409.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows/"+flowID+"/submit", map[string]string{"name": "Maria Silva", "email": "maria@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double submit: expected 409, got %d", rec.Code)
	}

	// Copy marks the transient copied state.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows/"+flowID+"/copy", nil)
	body = decodeBody(t, rec)
	flow = body["flow"].(map[string]any)
	if flow["copied"] != true {
		t.Fatalf("copied = %v, want true", flow["copied"])
	}

	// Back returns to the form but keeps the charge.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout/flows/"+flowID+"/back", nil)
	body = decodeBody(t, rec)
	flow = body["flow"].(map[string]any)
	if flow["step"] != "form" || flow["external_id"] != "ext-1" {
		t.Fatalf("back lost charge state: %v", flow)
	}

	// Close discards the flow.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/checkout/flows/"+flowID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close flow: expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/checkout/flows/"+flowID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after close: expected 404, got %d", rec.Code)
	}
}

func TestContentEndpoints(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	paths := map[string]string{
		"/api/v1/content/products":    "products",
		"/api/v1/content/faq":         "faq",
		"/api/v1/content/reviews":     "reviews",
		"/api/v1/content/influencers": "influencers",
	}
	for path, key := range paths {
		rec := doJSON(t, handler, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		body := decodeBody(t, rec)
		list, ok := body[key].([]any)
		if !ok || len(list) == 0 {
			t.Fatalf("%s: expected non-empty %q, got %v", path, key, body)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/notifications/next", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notification: expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	notification, ok := body["notification"].(map[string]any)
	if !ok || notification["name"] == "" {
		t.Fatalf("unexpected notification: %v", body)
	}
}

func TestAdminLoginAndCharges(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/admin/login", map[string]string{"username": "admin", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/admin/charges", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("charges without token: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/admin/login", map[string]string{"username": "admin", "password": "admin123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("missing access_token: %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/charges", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	authedRec := httptest.NewRecorder()
	handler.ServeHTTP(authedRec, req)
	if authedRec.Code != http.StatusOK {
		t.Fatalf("charges: expected 200, got %d (body: %s)", authedRec.Code, authedRec.Body.String())
	}
	var chargesBody map[string]any
	if err := json.NewDecoder(authedRec.Body).Decode(&chargesBody); err != nil {
		t.Fatalf("decode charges: %v", err)
	}
	if _, ok := chargesBody["charges"]; !ok {
		t.Fatalf("missing charges key: %v", chargesBody)
	}
}

func TestAdminLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	payload, _ := json.Marshal(map[string]string{"username": "admin", "password": "badpass"})
	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestAPI(t, &scriptedGateway{}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/content/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("allow-origin = %q", origin)
	}
}
