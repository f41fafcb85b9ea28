package register

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avryx-pos/avryx-pos/internal/toast"
)

func newTestFacade(t *testing.T, fb *fakeBackend) (*httptest.Server, *Session, *toast.Bus) {
	t.Helper()
	session, bus := newTestSession(t, fb)

	r := chi.NewRouter()
	r.Route("/api/v1", NewHandler(testLogger(), session, bus).MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, session, bus
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestManualBarcodeEndpoint(t *testing.T) {
	srv, session, _ := newTestFacade(t, cokeBackend())

	resp := postJSON(t, srv.URL+"/api/v1/scan/barcode", `{"barcode":"4800016641503"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, session.Lines(), 1)

	resp = postJSON(t, srv.URL+"/api/v1/scan/barcode", `{"barcode":"0000000000000"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/v1/scan/barcode", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing barcode fails validation")
}

func TestCheckoutEndpointErrorMapping(t *testing.T) {
	srv, session, _ := newTestFacade(t, cokeBackend())

	resp := postJSON(t, srv.URL+"/api/v1/checkout", `{"amount_paid":100}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "empty order")

	_, err := session.EnterBarcode(context.Background(), "4800016641503")
	require.NoError(t, err)

	resp = postJSON(t, srv.URL+"/api/v1/checkout", `{"amount_paid":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "insufficient payment")

	resp = postJSON(t, srv.URL+"/api/v1/checkout", `{"amount_paid":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "negative amount fails validation")

	resp = postJSON(t, srv.URL+"/api/v1/checkout", `{"amount_paid":50,"payment_method":"card"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "only cash is accepted")

	resp = postJSON(t, srv.URL+"/api/v1/checkout", `{"amount_paid":50}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, session.Lines())
}

func TestCartEndpoints(t *testing.T) {
	srv, _, _ := newTestFacade(t, cokeBackend())

	resp := postJSON(t, srv.URL+"/api/v1/cart/items", `{"product_id":3,"name":"Chips","unit_price":25}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/v1/cart/items", `{"name":"No ID"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/cart/items/3", strings.NewReader(`{"delta":2}`))
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	req, err = http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/cart/items/99", strings.NewReader(`{"delta":1}`))
	require.NoError(t, err)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode, "unknown product id")
}

func TestEventStreamDeliversToasts(t *testing.T) {
	srv, _, bus := newTestFacade(t, cokeBackend())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	bus.Success("Coke added to cart")

	scan := bufio.NewScanner(resp.Body)
	var sawEvent, sawPayload bool
	for scan.Scan() {
		line := scan.Text()
		if line == "event: toast" {
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "Coke added to cart") {
			sawPayload = true
			break
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawPayload)
}
