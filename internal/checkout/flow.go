package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paineluriel/backend/internal/domain"
)

// Flow is one live checkout: the modal a buyer has open, held
// server-side. All mutation goes through the manager while holding mu.
type Flow struct {
	mu sync.Mutex

	id          string
	sessionID   string
	step        domain.CheckoutStep
	amountCents int64
	productName string

	fieldErrors map[string]string
	loading     bool

	// created is the one-shot guard: once a charge exists for this flow
	// no second charge may be created until Retry clears it.
	created bool

	pixCode      string
	qrBase64     string
	externalID   string
	attemptID    string
	buyerEmail   string
	errorMessage string

	copiedUntil time.Time

	pollCancel context.CancelFunc
}

// snapshot builds the client-visible state. Callers must hold f.mu.
func (f *Flow) snapshot() domain.CheckoutFlowState {
	state := domain.CheckoutFlowState{
		ID:           f.id,
		SessionID:    f.sessionID,
		Step:         f.step,
		AmountCents:  f.amountCents,
		Amount:       decimal.NewFromInt(f.amountCents).Div(decimal.NewFromInt(100)),
		ProductName:  f.productName,
		Loading:      f.loading,
		PixCode:      f.pixCode,
		QRCodeBase64: f.qrBase64,
		ExternalID:   f.externalID,
		ErrorMessage: f.errorMessage,
		Copied:       time.Now().Before(f.copiedUntil),
	}
	if len(f.fieldErrors) > 0 {
		state.FieldErrors = make(map[string]string, len(f.fieldErrors))
		for k, v := range f.fieldErrors {
			state.FieldErrors[k] = v
		}
	}
	return state
}

// stopPolling cancels the status loop if one is running. Callers must
// hold f.mu.
func (f *Flow) stopPolling() {
	if f.pollCancel != nil {
		f.pollCancel()
		f.pollCancel = nil
	}
}
