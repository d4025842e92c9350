// Package checkout runs the payment flow: a buyer opens a flow for
// their cart session, submits the buyer form exactly once per charge,
// and the manager polls the gateway until the pix charge settles,
// expires, or the flow is closed.
package checkout

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paineluriel/backend/internal/cart"
	"paineluriel/backend/internal/domain"
	"paineluriel/backend/internal/events"
	"paineluriel/backend/internal/gateway"
	"paineluriel/backend/internal/store"
)

var (
	ErrFlowNotFound   = errors.New("checkout: flow not found")
	ErrEmptyCart      = errors.New("checkout: cart is empty")
	ErrChargeInFlight = errors.New("checkout: charge already created or in flight")
	ErrValidation     = errors.New("checkout: invalid buyer form")
)

const (
	msgConnection = "Erro de conexao. Verifique sua internet."
	msgGateway    = "Erro ao gerar pagamento"
	msgMalformed  = "Resposta inesperada do servidor"
	msgFailed     = "Pagamento falhou ou expirou. Tente novamente."

	msgNameRequired  = "Nome obrigatorio"
	msgFullName      = "Informe nome e sobrenome"
	msgEmailRequired = "Email obrigatorio"
	msgEmailInvalid  = "Email invalido"
)

const copiedWindow = 3 * time.Second

// Gateway is the slice of the pix client the manager needs; tests
// substitute a scripted fake.
type Gateway interface {
	CreateCharge(ctx context.Context, payload domain.ChargePayload) (gateway.Response, error)
	ChargeStatus(ctx context.Context, externalID string) (gateway.Response, error)
}

type Manager struct {
	mu    sync.RWMutex
	flows map[string]*Flow

	gw        Gateway
	carts     *cart.Service
	repo      store.Repository
	publisher events.Publisher

	pollInterval time.Duration
	pollTimeout  time.Duration

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
}

func NewManager(gw Gateway, carts *cart.Service, repo store.Repository, publisher events.Publisher, pollInterval time.Duration, pollTimeout time.Duration) *Manager {
	if pollInterval <= 0 {
		pollInterval = 7 * time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		flows:        make(map[string]*Flow),
		gw:           gw,
		carts:        carts,
		repo:         repo,
		publisher:    publisher,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		rootCtx:      ctx,
		rootCancel:   cancel,
	}
}

// Open starts a flow for a cart session at the form step. The charge
// amount is fixed from the cart total at open time.
func (m *Manager) Open(ctx context.Context, sessionID string) (domain.CheckoutFlowState, error) {
	view, err := m.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}
	if len(view.Items) == 0 {
		return domain.CheckoutFlowState{}, ErrEmptyCart
	}
	productName, err := m.carts.ProductName(ctx, sessionID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}

	flow := &Flow{
		id:          uuid.NewString(),
		sessionID:   sessionID,
		step:        domain.StepForm,
		amountCents: view.Total.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		productName: productName,
	}

	m.mu.Lock()
	m.flows[flow.id] = flow
	m.mu.Unlock()

	flow.mu.Lock()
	defer flow.mu.Unlock()
	return flow.snapshot(), nil
}

func (m *Manager) Get(flowID string) (domain.CheckoutFlowState, error) {
	flow, err := m.flow(flowID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}
	flow.mu.Lock()
	defer flow.mu.Unlock()
	return flow.snapshot(), nil
}

// Submit validates the buyer form and creates the charge. The created
// guard makes the charge one-shot: while a charge is in flight or
// already exists, further submits are rejected without touching the
// gateway.
func (m *Manager) Submit(ctx context.Context, flowID string, form domain.BuyerForm) (domain.CheckoutFlowState, error) {
	flow, err := m.flow(flowID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}

	flow.mu.Lock()
	if flow.loading || flow.created {
		state := flow.snapshot()
		flow.mu.Unlock()
		return state, ErrChargeInFlight
	}

	fieldErrors := validateBuyerForm(form)
	if len(fieldErrors) > 0 {
		flow.fieldErrors = fieldErrors
		state := flow.snapshot()
		flow.mu.Unlock()
		return state, ErrValidation
	}

	flow.fieldErrors = nil
	flow.errorMessage = ""
	flow.loading = true
	amountCents := flow.amountCents
	productName := flow.productName
	flow.mu.Unlock()

	payload := gateway.BuildPayload(domain.ChargeCreateRequest{
		Amount: amountCents,
		Buyer:  domain.BuyerInput{Name: form.Name, Email: form.Email},
	})

	resp, gwErr := m.gw.CreateCharge(ctx, payload)

	flow.mu.Lock()
	defer flow.mu.Unlock()
	flow.loading = false

	switch {
	case gwErr != nil:
		log.Printf("checkout: create charge flow=%s: %v", flowID, gwErr)
		flow.step = domain.StepError
		flow.errorMessage = msgConnection
		return flow.snapshot(), nil
	case !resp.OK():
		flow.step = domain.StepError
		flow.errorMessage = gateway.ExtractMessage(resp.Body, msgGateway)
		return flow.snapshot(), nil
	}

	result, ok := gateway.ParseChargeResult(resp.Body)
	if !ok {
		flow.step = domain.StepError
		flow.errorMessage = msgMalformed
		return flow.snapshot(), nil
	}

	flow.created = true
	flow.step = domain.StepQRCode
	flow.pixCode = result.PixCode
	flow.qrBase64 = result.QRCodeBase64
	flow.externalID = result.ExternalID
	flow.attemptID = uuid.NewString()
	flow.buyerEmail = strings.TrimSpace(form.Email)

	attempt := &domain.ChargeAttempt{
		ID:          flow.attemptID,
		FlowID:      flow.id,
		ExternalID:  result.ExternalID,
		AmountCents: amountCents,
		BuyerName:   strings.TrimSpace(form.Name),
		BuyerEmail:  strings.TrimSpace(form.Email),
		Product:     productName,
		Status:      domain.ChargeStatusPending,
	}
	if err := m.repo.CreateChargeAttempt(ctx, attempt); err != nil {
		log.Printf("checkout: record attempt flow=%s: %v", flowID, err)
	}

	m.startPolling(flow)
	return flow.snapshot(), nil
}

// Back returns a flow from the qrcode step to the form. The charge
// guard and the status loop stay alive: the pix charge still exists and
// may settle while the buyer looks at the form.
func (m *Manager) Back(flowID string) (domain.CheckoutFlowState, error) {
	flow, err := m.flow(flowID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.step == domain.StepQRCode {
		flow.step = domain.StepForm
	}
	return flow.snapshot(), nil
}

// Retry resets a failed flow to the form step and clears the charge
// guard so a fresh charge may be created.
func (m *Manager) Retry(flowID string) (domain.CheckoutFlowState, error) {
	flow, err := m.flow(flowID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.step != domain.StepError {
		return flow.snapshot(), nil
	}
	flow.stopPolling()
	flow.step = domain.StepForm
	flow.created = false
	flow.pixCode = ""
	flow.qrBase64 = ""
	flow.externalID = ""
	flow.attemptID = ""
	flow.errorMessage = ""
	flow.fieldErrors = nil
	return flow.snapshot(), nil
}

// Copy marks the pix code as copied for a short window; the snapshot
// reports Copied=true until it elapses.
func (m *Manager) Copy(flowID string) (domain.CheckoutFlowState, error) {
	flow, err := m.flow(flowID)
	if err != nil {
		return domain.CheckoutFlowState{}, err
	}
	flow.mu.Lock()
	defer flow.mu.Unlock()
	if flow.step == domain.StepQRCode && flow.pixCode != "" {
		flow.copiedUntil = time.Now().Add(copiedWindow)
	}
	return flow.snapshot(), nil
}

// Close discards a flow and stops its status loop. Closing an unknown
// flow is not an error; the client may close twice.
func (m *Manager) Close(flowID string) {
	m.mu.Lock()
	flow, ok := m.flows[flowID]
	if ok {
		delete(m.flows, flowID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	flow.mu.Lock()
	flow.stopPolling()
	flow.mu.Unlock()
}

// Shutdown stops every status loop and waits for them to exit, or for
// ctx to run out.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.rootCancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) flow(flowID string) (*Flow, error) {
	m.mu.RLock()
	flow, ok := m.flows[flowID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrFlowNotFound
	}
	return flow, nil
}

// startPolling launches the status loop for a flow. Callers must hold
// flow.mu. Any previous loop for the flow is cancelled first so at most
// one loop polls a given charge.
func (m *Manager) startPolling(flow *Flow) {
	flow.stopPolling()

	ctx, cancel := context.WithTimeout(m.rootCtx, m.pollTimeout)
	flow.pollCancel = cancel
	externalID := flow.externalID

	m.wg.Add(1)
	go m.pollLoop(ctx, flow, externalID)
}

func (m *Manager) pollLoop(ctx context.Context, flow *Flow, externalID string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				m.expireCharge(flow, externalID)
			}
			return
		case <-ticker.C:
		}

		resp, err := m.gw.ChargeStatus(ctx, externalID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("checkout: poll status external_id=%s: %v", externalID, err)
			continue
		}
		if !resp.OK() {
			log.Printf("checkout: poll status external_id=%s: gateway returned %d", externalID, resp.StatusCode)
			continue
		}

		status, raw := gateway.ParsePixStatus(resp.Body)
		switch status {
		case domain.PixStatusPaid:
			m.settlePaid(flow, externalID)
			return
		case domain.PixStatusFailed:
			m.settleFailed(flow, externalID)
			return
		default:
			if raw != "" && raw != "pending" {
				log.Printf("checkout: poll status external_id=%s: unknown status %q, still pending", externalID, raw)
			}
		}
	}
}

func (m *Manager) settlePaid(flow *Flow, externalID string) {
	flow.mu.Lock()
	flow.stopPolling()
	flow.step = domain.StepSuccess
	flow.errorMessage = ""
	sessionID := flow.sessionID
	attemptID := flow.attemptID
	amountCents := flow.amountCents
	productName := flow.productName
	buyerEmail := flow.buyerEmail
	flowID := flow.id
	flow.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.carts.Clear(ctx, sessionID); err != nil {
		log.Printf("checkout: clear cart session=%s: %v", sessionID, err)
	}
	m.updateAttempt(ctx, attemptID, domain.ChargeStatusPaid)
	m.publish(ctx, domain.PaymentEvent{
		Type:        domain.PaymentEventConfirmed,
		FlowID:      flowID,
		ExternalID:  externalID,
		AmountCents: amountCents,
		BuyerEmail:  buyerEmail,
		Product:     productName,
		OccurredAt:  time.Now().UTC(),
	})
}

func (m *Manager) settleFailed(flow *Flow, externalID string) {
	flow.mu.Lock()
	flow.stopPolling()
	flow.step = domain.StepError
	flow.errorMessage = msgFailed
	attemptID := flow.attemptID
	amountCents := flow.amountCents
	productName := flow.productName
	buyerEmail := flow.buyerEmail
	flowID := flow.id
	flow.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m.updateAttempt(ctx, attemptID, domain.ChargeStatusFailed)
	m.publish(ctx, domain.PaymentEvent{
		Type:        domain.PaymentEventFailed,
		FlowID:      flowID,
		ExternalID:  externalID,
		AmountCents: amountCents,
		BuyerEmail:  buyerEmail,
		Product:     productName,
		OccurredAt:  time.Now().UTC(),
	})
}

// expireCharge converges a flow whose status loop timed out without a
// terminal answer from the gateway.
func (m *Manager) expireCharge(flow *Flow, externalID string) {
	flow.mu.Lock()
	if flow.step == domain.StepSuccess {
		flow.mu.Unlock()
		return
	}
	flow.stopPolling()
	flow.step = domain.StepError
	flow.errorMessage = msgFailed
	attemptID := flow.attemptID
	flow.mu.Unlock()

	log.Printf("checkout: charge external_id=%s expired without terminal status", externalID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.updateAttempt(ctx, attemptID, domain.ChargeStatusExpired)
}

func (m *Manager) updateAttempt(ctx context.Context, attemptID string, status string) {
	if attemptID == "" {
		return
	}
	if err := m.repo.UpdateChargeStatus(ctx, attemptID, status); err != nil {
		log.Printf("checkout: update attempt %s to %s: %v", attemptID, status, err)
	}
}

func (m *Manager) publish(ctx context.Context, event domain.PaymentEvent) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Printf("checkout: publish %s external_id=%s: %v", event.Type, event.ExternalID, err)
	}
}

func validateBuyerForm(form domain.BuyerForm) map[string]string {
	fieldErrors := make(map[string]string)

	name := strings.TrimSpace(form.Name)
	switch {
	case name == "":
		fieldErrors["name"] = msgNameRequired
	case len(strings.Fields(name)) < 2:
		fieldErrors["name"] = msgFullName
	}

	email := strings.TrimSpace(form.Email)
	switch {
	case email == "":
		fieldErrors["email"] = msgEmailRequired
	case !validEmail(email):
		fieldErrors["email"] = msgEmailInvalid
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	if strings.Contains(domainPart, "@") || strings.Contains(email, " ") {
		return false
	}
	dot := strings.LastIndex(domainPart, ".")
	return dot > 0 && dot < len(domainPart)-1
}
