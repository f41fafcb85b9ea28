package register

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/avryx-pos/avryx-pos/internal/catalog"
	"github.com/avryx-pos/avryx-pos/internal/checkout"
	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
	"github.com/avryx-pos/avryx-pos/internal/scanner"
	"github.com/avryx-pos/avryx-pos/internal/toast"
)

// Handler exposes the register session over the local HTTP facade used by
// the terminal UI.
type Handler struct {
	logger    *slog.Logger
	session   *Session
	toasts    *toast.Bus
	validator *validator.Validate
}

// NewHandler constructs the facade handler.
func NewHandler(logger *slog.Logger, session *Session, toasts *toast.Bus) *Handler {
	return &Handler{
		logger:    logger,
		session:   session,
		toasts:    toasts,
		validator: validator.New(),
	}
}

// MountRoutes registers facade routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/scan", func(r chi.Router) {
		r.Post("/start", h.handleScanStart)
		r.Post("/stop", h.handleScanStop)
		r.Post("/barcode", h.handleManualBarcode)
		r.Post("/visual", h.handleVisualRecognize)
		r.Post("/quick-sale", h.handleQuickSale)
		r.Get("/history", h.handleScanHistory)
	})
	r.Get("/products", h.handleSearch)
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.handleCartView)
		r.Delete("/", h.handleCartClear)
		r.Post("/items", h.handleCartAdd)
		r.Patch("/items/{productID}", h.handleCartAdjust)
		r.Delete("/items/{productID}", h.handleCartRemove)
	})
	r.Post("/checkout", h.handleCheckout)
	r.Get("/events", h.handleEvents)
}

type scanStatus struct {
	Scanning bool   `json:"scanning"`
	State    string `json:"state"`
}

func (h *Handler) status() scanStatus {
	st := h.session.scanner.State()
	return scanStatus{Scanning: st == scanner.StateActive, State: st.String()}
}

func (h *Handler) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if err := h.session.StartScan(); err != nil {
		switch {
		case errors.Is(err, scanner.ErrAlreadyActive):
			httpx.Problem(w, http.StatusConflict, "Scanner Active", "scanner is already running")
		case errors.Is(err, scanner.ErrCameraUnavailable):
			httpx.Problem(w, http.StatusServiceUnavailable, "Camera Unavailable", scanner.Remediation)
		default:
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.Data(w, http.StatusOK, h.status())
}

func (h *Handler) handleScanStop(w http.ResponseWriter, r *http.Request) {
	h.session.StopScan()
	httpx.Data(w, http.StatusOK, h.status())
}

type barcodeRequest struct {
	Barcode string `json:"barcode" validate:"required,max=64"`
}

func (h *Handler) handleManualBarcode(w http.ResponseWriter, r *http.Request) {
	var req barcodeRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.session.EnterBarcode(r.Context(), req.Barcode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, product)
}

func (h *Handler) handleVisualRecognize(w http.ResponseWriter, r *http.Request) {
	rec, err := h.session.VisualRecognize()
	if err != nil {
		if errors.Is(err, scanner.ErrNotActive) {
			httpx.Problem(w, http.StatusConflict, "Scanner Inactive", "open the camera scanner first")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, rec)
}

type quickSaleRequest struct {
	Barcode  string `json:"barcode" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1,lte=999"`
}

func (h *Handler) handleQuickSale(w http.ResponseWriter, r *http.Request) {
	var req quickSaleRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	receipt, err := h.session.QuickSale(r.Context(), req.Barcode, req.Quantity)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, receipt)
}

func (h *Handler) handleScanHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	entries, err := h.session.History(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, entries)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	limit := queryInt(r, "limit", 0)

	results, err := h.session.Search(r.Context(), query, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, results)
}

type cartView struct {
	Lines []cartLineView `json:"lines"`
	Total float64        `json:"total"`
}

type cartLineView struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Barcode   string  `json:"barcode"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

func (h *Handler) cartPayload() cartView {
	lines := h.session.Lines()
	view := cartView{Lines: make([]cartLineView, 0, len(lines)), Total: h.session.Total()}
	for _, l := range lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			Barcode:   l.Barcode,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal(),
		})
	}
	return view
}

func (h *Handler) handleCartView(w http.ResponseWriter, r *http.Request) {
	httpx.Data(w, http.StatusOK, h.cartPayload())
}

type addItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Name      string  `json:"name" validate:"required,max=200"`
	Barcode   string  `json:"barcode" validate:"max=64"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

func (h *Handler) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	h.session.AddProduct(catalogProduct(req))
	httpx.Data(w, http.StatusOK, h.cartPayload())
}

type adjustRequest struct {
	Delta int `json:"delta" validate:"required"`
}

func (h *Handler) handleCartAdjust(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req adjustRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if _, ok := h.session.AdjustQuantity(productID, req.Delta); !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product is not on the order")
		return
	}
	httpx.Data(w, http.StatusOK, h.cartPayload())
}

func (h *Handler) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	if !h.session.Remove(productID) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product is not on the order")
		return
	}
	httpx.Data(w, http.StatusOK, h.cartPayload())
}

func (h *Handler) handleCartClear(w http.ResponseWriter, r *http.Request) {
	h.session.Clear()
	httpx.NoContent(w)
}

type checkoutRequest struct {
	AmountPaid    float64 `json:"amount_paid" validate:"gte=0"`
	PaymentMethod string  `json:"payment_method" validate:"omitempty,oneof=cash"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	receipt, err := h.session.Checkout(r.Context(), req.AmountPaid)
	if err != nil {
		h.respondCheckoutError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, receipt)
}

func (h *Handler) respondCheckoutError(w http.ResponseWriter, err error) {
	var insufficient *checkout.InsufficientPaymentError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Payment", insufficient.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Empty Order", "add items before checkout")
	case errors.Is(err, checkout.ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount paid is not a valid number")
	case errors.Is(err, checkout.ErrInFlight):
		httpx.Problem(w, http.StatusConflict, "Checkout In Progress", "a sale is already being submitted")
	default:
		httpx.RespondError(w, err)
	}
}

// handleEvents streams toast and register events to the UI over SSE.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	// Subscribe before the headers go out so nothing published between the
	// client seeing 200 and the loop starting is lost.
	events, cancel := h.toasts.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := httpx.SSEvent(w, "toast", ev); err != nil {
				return
			}
		}
	}
}

func (h *Handler) decodeValid(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := h.validator.Struct(target); err != nil {
		return err
	}
	return nil
}

func catalogProduct(req addItemRequest) catalog.Product {
	return catalog.Product{
		ID:        req.ProductID,
		Name:      req.Name,
		Barcode:   req.Barcode,
		UnitPrice: req.UnitPrice,
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
