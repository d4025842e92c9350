package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Image         string          `json:"image"`
	Features      []string        `json:"features"`
	Badge         string          `json:"badge"`
}

type CartItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Quantity      int             `json:"quantity"`
}

type Cart struct {
	ID            string     `json:"id"`
	Items         []CartItem `json:"items"`
	AppliedCoupon string     `json:"applied_coupon,omitempty"`
	CouponError   string     `json:"coupon_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Subtotal is Σ unit_price × quantity over all items.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

type CartView struct {
	Cart
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

// ChargeCreateRequest is the relay input for POST /api/checkout/create.
// Offer id and quantity are `any` because callers send them as either
// strings or numbers; normalization coerces them.
type ChargeCreateRequest struct {
	Amount   int64          `json:"amount"`
	Buyer    BuyerInput     `json:"buyer"`
	Product  *ProductRef    `json:"product,omitempty"`
	Offer    *OfferInput    `json:"offer,omitempty"`
	Tracking *TrackingInput `json:"tracking,omitempty"`
}

type BuyerInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OfferInput struct {
	ID       any    `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Quantity any    `json:"quantity,omitempty"`
}

type TrackingInput struct {
	Ref         *string `json:"ref,omitempty"`
	Src         *string `json:"src,omitempty"`
	Sck         *string `json:"sck,omitempty"`
	UTMSource   *string `json:"utm_source,omitempty"`
	UTMMedium   *string `json:"utm_medium,omitempty"`
	UTMCampaign *string `json:"utm_campaign,omitempty"`
	UTMID       *string `json:"utm_id,omitempty"`
	UTMTerm     *string `json:"utm_term,omitempty"`
	UTMContent  *string `json:"utm_content,omitempty"`
}

// ChargePayload is the fully normalized body forwarded to the gateway.
// Every field is always populated; the gateway rejects requests with
// missing attribution fields.
type ChargePayload struct {
	Amount   int64        `json:"amount"`
	Buyer    BuyerPayload `json:"buyer"`
	Product  ProductRef   `json:"product"`
	Offer    Offer        `json:"offer"`
	Tracking Tracking     `json:"tracking"`
}

type BuyerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type Offer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Tracking struct {
	Ref         string `json:"ref"`
	Src         string `json:"src"`
	Sck         string `json:"sck"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMID       string `json:"utm_id"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

// ChargeResult is the slice of the gateway response the checkout flow
// needs. ExternalID is the join key for status polling.
type ChargeResult struct {
	ExternalID   string `json:"external_id"`
	PixCode      string `json:"pix_code"`
	QRCodeBase64 string `json:"qrcode_base64"`
}

type PixStatus string

const (
	PixStatusPending PixStatus = "pending"
	PixStatusPaid    PixStatus = "paid"
	PixStatusFailed  PixStatus = "failed"
)

func (s PixStatus) IsTerminal() bool {
	return s == PixStatusPaid || s == PixStatusFailed
}

type CheckoutStep string

const (
	StepForm    CheckoutStep = "form"
	StepQRCode  CheckoutStep = "qrcode"
	StepSuccess CheckoutStep = "success"
	StepError   CheckoutStep = "error"
)

type BuyerForm struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type OpenFlowRequest struct {
	SessionID string `json:"session_id"`
}

// CheckoutFlowState is the client-visible snapshot of a checkout flow.
type CheckoutFlowState struct {
	ID           string            `json:"id"`
	SessionID    string            `json:"session_id"`
	Step         CheckoutStep      `json:"step"`
	AmountCents  int64             `json:"amount_cents"`
	Amount       decimal.Decimal   `json:"amount"`
	ProductName  string            `json:"product_name"`
	FieldErrors  map[string]string `json:"field_errors,omitempty"`
	Loading      bool              `json:"loading"`
	PixCode      string            `json:"pix_code,omitempty"`
	QRCodeBase64 string            `json:"qrcode_base64,omitempty"`
	ExternalID   string            `json:"external_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Copied       bool              `json:"copied"`
}

type ChargeAttempt struct {
	ID          string    `json:"id"`
	FlowID      string    `json:"flow_id"`
	ExternalID  string    `json:"external_id"`
	AmountCents int64     `json:"amount_cents"`
	BuyerName   string    `json:"buyer_name"`
	BuyerEmail  string    `json:"buyer_email"`
	Product     string    `json:"product"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	ChargeStatusPending = "pending"
	ChargeStatusPaid    = "paid"
	ChargeStatusFailed  = "failed"
	ChargeStatusExpired = "expired"
)

type PaymentEvent struct {
	Type        string    `json:"type"`
	FlowID      string    `json:"flow_id"`
	ExternalID  string    `json:"external_id"`
	AmountCents int64     `json:"amount_cents"`
	BuyerEmail  string    `json:"buyer_email"`
	Product     string    `json:"product"`
	OccurredAt  time.Time `json:"occurred_at"`
}

const (
	PaymentEventConfirmed = "payment.confirmed"
	PaymentEventFailed    = "payment.failed"
)

type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Review struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Rating   int    `json:"rating"`
	Date     string `json:"date"`
	Verified bool   `json:"verified"`
	Text     string `json:"text"`
	Helpful  int    `json:"helpful"`
}

type Influencer struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	Role      string `json:"role"`
	Followers string `json:"followers"`
	Quote     string `json:"quote"`
}

// PurchaseNotification is display-only social proof; it carries no real
// purchase data.
type PurchaseNotification struct {
	Name     string `json:"name"`
	Product  string `json:"product"`
	Location string `json:"location"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}
