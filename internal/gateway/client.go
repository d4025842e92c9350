package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"paineluriel/backend/internal/domain"
)

// maxResponseBytes caps how much of a gateway response is read; bodies
// are relayed back to callers so an unbounded read is an easy DoS.
const maxResponseBytes = 1 << 20

// Response is a gateway reply: status code plus raw body. Non-2xx
// replies are data, not errors — only transport/read failures surface
// as errors (and count against the circuit breaker).
type Response struct {
	StatusCode int
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Response]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "pix-gateway",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

func (c *Client) CreateCharge(ctx context.Context, payload domain.ChargePayload) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, err
	}
	return c.do(ctx, http.MethodPost, "/checkout/create", body)
}

func (c *Client) ChargeStatus(ctx context.Context, externalID string) (Response, error) {
	return c.do(ctx, http.MethodGet, "/checkout/status/"+url.PathEscape(externalID), nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte) (Response, error) {
	return c.breaker.Execute(func() (Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return Response{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return Response{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return Response{}, err
		}
		return Response{StatusCode: resp.StatusCode, Body: data}, nil
	})
}

// BuildPayload normalizes a charge request into the exact shape the
// gateway accepts: offer id coerced to string with placeholder
// defaults, quantity defaulted to 1 unless a finite number, and every
// tracking field populated.
func BuildPayload(req domain.ChargeCreateRequest) domain.ChargePayload {
	payload := domain.ChargePayload{
		Amount: req.Amount,
		Buyer: domain.BuyerPayload{
			Name:     trim(req.Buyer.Name),
			Email:    trim(req.Buyer.Email),
			Document: trim(req.Buyer.Document),
			Phone:    trim(req.Buyer.Phone),
		},
		Product: domain.ProductRef{ID: "painel_uriel", Name: "Painel do Uriel"},
		Offer:   domain.Offer{ID: "oferta_promocional", Name: "Oferta Promocional", Quantity: 1},
		Tracking: domain.Tracking{
			Ref:         "direct",
			Src:         "site",
			Sck:         "organic",
			UTMSource:   "direct",
			UTMMedium:   "none",
			UTMCampaign: "checkout",
		},
	}

	if req.Product != nil && (req.Product.ID != "" || req.Product.Name != "") {
		payload.Product = *req.Product
	}

	if req.Offer != nil {
		if id := coerceString(req.Offer.ID); id != "" {
			payload.Offer.ID = id
		}
		if name := trim(req.Offer.Name); name != "" {
			payload.Offer.Name = name
		}
		if qty, ok := coerceQuantity(req.Offer.Quantity); ok {
			payload.Offer.Quantity = qty
		}
	}

	if t := req.Tracking; t != nil {
		applyIfSet(&payload.Tracking.Ref, t.Ref)
		applyIfSet(&payload.Tracking.Src, t.Src)
		applyIfSet(&payload.Tracking.Sck, t.Sck)
		applyIfSet(&payload.Tracking.UTMSource, t.UTMSource)
		applyIfSet(&payload.Tracking.UTMMedium, t.UTMMedium)
		applyIfSet(&payload.Tracking.UTMCampaign, t.UTMCampaign)
		applyIfSet(&payload.Tracking.UTMID, t.UTMID)
		applyIfSet(&payload.Tracking.UTMTerm, t.UTMTerm)
		applyIfSet(&payload.Tracking.UTMContent, t.UTMContent)
	}

	return payload
}

// applyIfSet keeps the default only when the field was absent; an
// explicitly sent value wins, including the empty string.
func applyIfSet(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return trim(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func coerceQuantity(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	qty := int(math.Round(f))
	if qty < 1 {
		return 0, false
	}
	return qty, true
}

// ExtractMessage pulls the human-readable message out of a gateway
// error body, checking fields in the order the gateway is known to use
// them: error, message, detail.message, errors[0].message.
func ExtractMessage(body []byte, fallback string) string {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return fallback
	}
	if msg, ok := data["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := data["message"].(string); ok && msg != "" {
		return msg
	}
	if detail, ok := data["detail"].(map[string]any); ok {
		if msg, ok := detail["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if errs, ok := data["errors"].([]any); ok && len(errs) > 0 {
		if first, ok := errs[0].(map[string]any); ok {
			if msg, ok := first["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return fallback
}

// ParseChargeResult extracts the pix payment data from a successful
// charge-creation body. ok is false when the payment code or external
// id is missing, which callers treat as a malformed response.
func ParseChargeResult(body []byte) (domain.ChargeResult, bool) {
	var envelope struct {
		Data struct {
			ExternalID string `json:"external_id"`
			Pix        struct {
				Code         string `json:"code"`
				QRCodeBase64 string `json:"qrcode_base64"`
			} `json:"pix"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.ChargeResult{}, false
	}
	result := domain.ChargeResult{
		ExternalID:   envelope.Data.ExternalID,
		PixCode:      envelope.Data.Pix.Code,
		QRCodeBase64: envelope.Data.Pix.QRCodeBase64,
	}
	if result.ExternalID == "" || result.PixCode == "" {
		return domain.ChargeResult{}, false
	}
	return result, true
}

// ParsePixStatus maps a status body onto the explicit allow-list:
// "paid" and "failed" are terminal, anything else is still pending.
// The raw status is returned so unknown values can be logged.
func ParsePixStatus(body []byte) (domain.PixStatus, string) {
	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.PixStatusPending, ""
	}
	switch envelope.Data.Status {
	case "paid":
		return domain.PixStatusPaid, envelope.Data.Status
	case "failed":
		return domain.PixStatusFailed, envelope.Data.Status
	default:
		return domain.PixStatusPending, envelope.Data.Status
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
