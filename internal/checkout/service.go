package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avryx-pos/avryx-pos/internal/cart"
	"github.com/avryx-pos/avryx-pos/internal/platform/backend"
	"github.com/avryx-pos/avryx-pos/internal/shared"
)

// State is the orchestrator lifecycle. It returns to idle after every
// attempt, settled or not.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

// Local validation failures. All are caught before any network call.
var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInvalidAmount = errors.New("amount paid is not a valid number")
	// ErrInFlight guards against double submission while a sale is being
	// processed; there is no server-side idempotency key in this design.
	ErrInFlight = errors.New("checkout already in progress")
)

// InsufficientPaymentError reports how much the ticket requires.
type InsufficientPaymentError struct {
	Required float64
	Paid     float64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("Insufficient payment. Need %s", shared.FormatPeso(e.Required))
}

// Orchestrator submits sales. One orchestrator exists per register session.
type Orchestrator struct {
	api      *backend.Client
	validate *validator.Validate
	state    atomic.Int32
}

// NewOrchestrator constructs an idle orchestrator.
func NewOrchestrator(api *backend.Client) *Orchestrator {
	return &Orchestrator{
		api:      api,
		validate: validator.New(),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

type receiptEnvelope struct {
	Data *Receipt `json:"data"`
}

// Submit validates locally, then posts the sale. On acceptance the receipt
// is returned and the caller clears the cart — never before acceptance, so
// a failed submission leaves everything for a retry. On rejection the error
// carries the server's reason when it gave one.
func (o *Orchestrator) Submit(ctx context.Context, lines []cart.Line, amountPaid float64) (*Receipt, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateValidating)) {
		return nil, ErrInFlight
	}
	defer o.state.Store(int32(StateIdle))

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if math.IsNaN(amountPaid) || math.IsInf(amountPaid, 0) || amountPaid < 0 {
		return nil, ErrInvalidAmount
	}

	var total float64
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		total += l.Subtotal()
		items = append(items, Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	if amountPaid < total {
		return nil, &InsufficientPaymentError{Required: total, Paid: amountPaid}
	}

	req := SaleRequest{
		Items:         items,
		PaymentMethod: PaymentCash,
		AmountPaid:    amountPaid,
		Discount:      0,
	}
	if err := o.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid sale request: %w", err)
	}

	o.state.Store(int32(StateSubmitting))

	var out receiptEnvelope
	if err := o.api.Post(ctx, "/api/v1/sales", req, &out); err != nil {
		return nil, fmt.Errorf("submit sale: %w", err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("submit sale: backend returned no receipt")
	}

	o.state.Store(int32(StateSettled))
	receipt := *out.Data
	if receipt.SettledAt.IsZero() {
		receipt.SettledAt = time.Now()
	}
	return &receipt, nil
}
