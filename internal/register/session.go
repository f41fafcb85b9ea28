// Package register ties the scanner, catalog, cart, checkout and toast
// channel into one terminal session. Exactly one session owns the cart; all
// mutations funnel through it.
package register

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avryx-pos/avryx-pos/internal/cart"
	"github.com/avryx-pos/avryx-pos/internal/catalog"
	"github.com/avryx-pos/avryx-pos/internal/checkout"
	"github.com/avryx-pos/avryx-pos/internal/platform/backend"
	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
	"github.com/avryx-pos/avryx-pos/internal/scanner"
	"github.com/avryx-pos/avryx-pos/internal/shared"
	"github.com/avryx-pos/avryx-pos/internal/toast"
)

// SourceFactory builds a fresh frame source for each scan session.
type SourceFactory func() scanner.FrameSource

// Deps wires a session.
type Deps struct {
	Logger    *slog.Logger
	Scanner   *scanner.Adapter
	Catalog   *catalog.Service
	Checkout  *checkout.Orchestrator
	Toasts    *toast.Bus
	History   *scanner.HistoryStore
	NewSource SourceFactory
}

// Session is the register engine. Cart mutations happen under one mutex and
// only after the originating async work has been checked for staleness.
type Session struct {
	id     string
	logger *slog.Logger

	mu   sync.Mutex
	cart *cart.Cart

	scanner  *scanner.Adapter
	catalog  *catalog.Service
	checkout *checkout.Orchestrator
	toasts   *toast.Bus
	history  *scanner.HistoryStore

	newSource SourceFactory

	// scanCtx spans one camera-active lifetime; stopping the scanner cancels
	// it so in-flight lookups and visual recognition die with the session.
	scanCtx    context.Context
	scanCancel context.CancelFunc

	pumpCtx    context.Context
	pumpCancel context.CancelFunc
}

// NewSession constructs a session and starts its detection pump.
func NewSession(deps Deps) *Session {
	s := &Session{
		id:        uuid.NewString(),
		logger:    deps.Logger,
		cart:      cart.New(),
		scanner:   deps.Scanner,
		catalog:   deps.Catalog,
		checkout:  deps.Checkout,
		toasts:    deps.Toasts,
		history:   deps.History,
		newSource: deps.NewSource,
	}
	s.pumpCtx, s.pumpCancel = context.WithCancel(context.Background())
	go s.pump()
	return s
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Close stops scanning and the detection pump.
func (s *Session) Close() {
	s.StopScan()
	s.pumpCancel()
}

// ============================================================================
// SCANNING
// ============================================================================

// StartScan opens the camera. A failure is fatal to the scan session only:
// the operator gets remediation steps and the cart is untouched.
func (s *Session) StartScan() error {
	s.mu.Lock()
	if s.scanCancel != nil {
		if s.scanner.State() != scanner.StateIdle {
			s.mu.Unlock()
			return scanner.ErrAlreadyActive
		}
		// The previous scan session died on its own (fatal stream error);
		// release its context before starting fresh.
		s.scanCancel()
		s.scanCtx, s.scanCancel = nil, nil
	}
	s.scanCtx, s.scanCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.scanner.Start(s.newSource()); err != nil {
		s.mu.Lock()
		s.scanCancel()
		s.scanCtx, s.scanCancel = nil, nil
		s.mu.Unlock()

		if errors.Is(err, scanner.ErrCameraUnavailable) {
			s.toasts.Error("Camera unavailable. " + scanner.Remediation)
		} else if errors.Is(err, scanner.ErrAlreadyActive) {
			return err
		} else {
			s.toasts.Error(shared.UserSafeMessage(err))
		}
		return err
	}

	s.toasts.Success("Scanner ready - point at barcode")
	return nil
}

// StopScan releases the camera and cancels any in-flight work tied to the
// scan session. Idempotent.
func (s *Session) StopScan() {
	s.mu.Lock()
	cancel := s.scanCancel
	s.scanCtx, s.scanCancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.scanner.Stop()
}

// Scanning reports whether the camera is live.
func (s *Session) Scanning() bool {
	return s.scanner.State() == scanner.StateActive
}

// pump consumes decoded symbols strictly in detection order, resolving each
// before looking at the next so rapid distinct scans cannot misattribute
// cart lines.
func (s *Session) pump() {
	for {
		select {
		case <-s.pumpCtx.Done():
			return
		case d := <-s.scanner.Detections():
			s.handleDetection(d)
		}
	}
}

func (s *Session) handleDetection(d scanner.Detection) {
	s.mu.Lock()
	ctx := s.scanCtx
	s.mu.Unlock()
	if ctx == nil || d.Epoch != s.scanner.Epoch() {
		return // session already stopped
	}

	product, err := s.catalog.ResolveByBarcode(ctx, d.Symbol)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return // stopped mid-lookup; discard silently
		}
		s.logger.Warn("barcode lookup failed", slog.String("symbol", d.Symbol), slog.Any("error", err))
		s.toasts.Error("Failed to look up barcode")
		return
	}

	// The resolution was async; only mutate if this scan session is still
	// the current one.
	if d.Epoch != s.scanner.Epoch() {
		return
	}
	s.applyResolved(d.Symbol, product)
}

// applyResolved merges an already-relevance-checked resolution into the cart.
func (s *Session) applyResolved(symbol string, product *catalog.Product) {
	if product == nil {
		s.toasts.Warning(fmt.Sprintf("Product not found for %s", symbol))
		s.recordHistory(scanner.HistoryEntry{Symbol: symbol, Outcome: scanner.OutcomeNotFound})
		return
	}

	s.mu.Lock()
	line := s.cart.AddOrIncrement(product.ID, product.Name, product.Barcode, product.UnitPrice)
	s.mu.Unlock()

	s.toasts.Success(fmt.Sprintf("%s added to cart", line.Name))
	s.recordHistory(scanner.HistoryEntry{
		Symbol:      symbol,
		ProductID:   product.ID,
		ProductName: product.Name,
		Outcome:     scanner.OutcomeAdded,
	})
}

func (s *Session) recordHistory(e scanner.HistoryEntry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if err := s.history.Record(context.Background(), e); err != nil {
		s.logger.Warn("record scan history", slog.Any("error", err))
	}
}

// EnterBarcode handles manual barcode entry; it does not require a live
// camera.
func (s *Session) EnterBarcode(ctx context.Context, symbol string) (*catalog.Product, error) {
	product, err := s.catalog.ResolveByBarcode(ctx, symbol)
	if err != nil {
		s.toasts.Error(shared.UserSafeMessage(err))
		return nil, err
	}
	s.applyResolved(symbol, product)
	if product == nil {
		return nil, fmt.Errorf("%w: barcode %s", httpx.ErrNotFound, symbol)
	}
	return product, nil
}

// VisualRecognize captures a still from the live stream and asks the AI
// matcher for candidates. The operator picks from the ranked list; nothing
// is auto-added. A result arriving after the scan session ended is
// discarded.
func (s *Session) VisualRecognize() (*catalog.VisualRecognition, error) {
	s.mu.Lock()
	ctx := s.scanCtx
	s.mu.Unlock()
	if ctx == nil {
		return nil, scanner.ErrNotActive
	}

	frame := s.scanner.CaptureStill()
	if frame == nil {
		return nil, scanner.ErrNotActive
	}
	epoch := s.scanner.Epoch()

	rec, err := s.catalog.RecognizeVisual(ctx, base64.StdEncoding.EncodeToString(frame))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: scan session ended", scanner.ErrNotActive)
		}
		s.toasts.Error("Visual recognition failed")
		return nil, err
	}
	if epoch != s.scanner.Epoch() {
		// Stale response from a previous camera lifetime.
		return nil, fmt.Errorf("%w: scan session ended", scanner.ErrNotActive)
	}
	return rec, nil
}

// ============================================================================
// CART
// ============================================================================

// Lines returns the ticket snapshot in insertion order.
func (s *Session) Lines() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

// Total recomputes the ticket total.
func (s *Session) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

// AddProduct merges a product picked from type-ahead search into the cart.
func (s *Session) AddProduct(p catalog.Product) cart.Line {
	s.mu.Lock()
	line := s.cart.AddOrIncrement(p.ID, p.Name, p.Barcode, p.UnitPrice)
	s.mu.Unlock()
	s.toasts.Success(fmt.Sprintf("%s added to cart", p.Name))
	return line
}

// AdjustQuantity applies delta with the floor-at-1 rule.
func (s *Session) AdjustQuantity(productID int64, delta int) (cart.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.AdjustQuantity(productID, delta)
}

// Remove deletes a line.
func (s *Session) Remove(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Remove(productID)
}

// Clear empties the ticket.
func (s *Session) Clear() {
	s.mu.Lock()
	s.cart.Clear()
	s.mu.Unlock()
	s.toasts.Info("Order cleared")
}

// ============================================================================
// SEARCH AND CHECKOUT
// ============================================================================

// Search proxies type-ahead product search.
func (s *Session) Search(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	results, err := s.catalog.Search(ctx, query, limit)
	if err != nil {
		s.toasts.Error("Search error occurred")
		return nil, err
	}
	return results, nil
}

// History returns recent scans, newest first.
func (s *Session) History(ctx context.Context, limit int) ([]scanner.HistoryEntry, error) {
	return s.history.Recent(ctx, limit)
}

// Checkout submits the current ticket. The cart and the entered amount
// survive every failure path untouched; they reset only after the backend
// accepts the sale.
func (s *Session) Checkout(ctx context.Context, amountPaid float64) (*checkout.Receipt, error) {
	s.mu.Lock()
	lines := s.cart.Lines()
	s.mu.Unlock()

	receipt, err := s.checkout.Submit(ctx, lines, amountPaid)
	if err != nil {
		s.toasts.Error(checkoutFailureMessage(err))
		return nil, err
	}

	s.mu.Lock()
	s.cart.Clear()
	s.mu.Unlock()

	s.toasts.Success(fmt.Sprintf("Sale completed. Change due %s", shared.FormatPeso(receipt.ChangeGiven)))
	return receipt, nil
}

// QuickSale resolves a barcode and submits a one-line exact-cash sale
// without touching the cart.
func (s *Session) QuickSale(ctx context.Context, symbol string, quantity int) (*checkout.Receipt, error) {
	if quantity < 1 {
		quantity = 1
	}
	product, err := s.catalog.ResolveByBarcode(ctx, symbol)
	if err != nil {
		s.toasts.Error(shared.UserSafeMessage(err))
		return nil, err
	}
	if product == nil {
		s.toasts.Warning(fmt.Sprintf("Product not found for %s", symbol))
		return nil, fmt.Errorf("%w: barcode %s", httpx.ErrNotFound, symbol)
	}

	lines := []cart.Line{{
		ProductID: product.ID,
		Name:      product.Name,
		Barcode:   product.Barcode,
		UnitPrice: product.UnitPrice,
		Quantity:  quantity,
	}}
	amount := product.UnitPrice * float64(quantity)

	receipt, err := s.checkout.Submit(ctx, lines, amount)
	if err != nil {
		s.toasts.Error(checkoutFailureMessage(err))
		return nil, err
	}

	s.toasts.Success(fmt.Sprintf("Quick sale: %d x %s", quantity, product.Name))
	s.recordHistory(scanner.HistoryEntry{
		Symbol:      symbol,
		ProductID:   product.ID,
		ProductName: product.Name,
		Outcome:     scanner.OutcomeAdded,
	})
	return receipt, nil
}

// checkoutFailureMessage prefers the most specific reason available:
// local validation text, then the server's verbatim message, then a
// generic fallback.
func checkoutFailureMessage(err error) string {
	var insufficient *checkout.InsufficientPaymentError
	switch {
	case errors.As(err, &insufficient):
		return insufficient.Error()
	case errors.Is(err, checkout.ErrEmptyCart):
		return "Order is empty"
	case errors.Is(err, checkout.ErrInvalidAmount):
		return "Enter a valid amount paid"
	case errors.Is(err, checkout.ErrInFlight):
		return "Checkout already in progress"
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Checkout failed. Try again"
}
