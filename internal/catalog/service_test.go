package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avryx-pos/avryx-pos/internal/platform/backend"
	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	api := backend.New(backend.Config{BaseURL: srv.URL}, logger)
	return NewService(api, logger), srv
}

func TestResolveByBarcodeFound(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/barcode/4800016641503", r.URL.Path)
		httpx.JSON(w, http.StatusOK, map[string]any{"data": Product{
			ID: 7, Name: "Coke Sakto", Barcode: "4800016641503", UnitPrice: 15, StockQuantity: 24,
		}})
	}))

	p, err := svc.ResolveByBarcode(context.Background(), "4800016641503")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "Coke Sakto", p.Name)
}

func TestResolveByBarcodeMissIsNotAnError(t *testing.T) {
	t.Run("null data", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]any{"data": nil})
		}))
		p, err := svc.ResolveByBarcode(context.Background(), "000")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("404", func(t *testing.T) {
		svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		p, err := svc.ResolveByBarcode(context.Background(), "000")
		require.NoError(t, err)
		assert.Nil(t, p)
	})
}

func TestSearchShortQuerySkipsRequest(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	results, err := svc.Search(context.Background(), "c", 5)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Zero(t, calls.Load())
}

func TestSearchPassesQueryAndCapsResults(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "coke", r.URL.Query().Get("search"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		httpx.JSON(w, http.StatusOK, map[string]any{"data": []Product{
			{ID: 1, Name: "Coke"}, {ID: 2, Name: "Coke Zero"}, {ID: 3, Name: "Coke Light"},
		}})
	}))

	results, err := svc.Search(context.Background(), "coke", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchFailureSurfacesSingleError(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := svc.Search(context.Background(), "coke", 5)
	require.ErrorIs(t, err, httpx.ErrUnavailable)
}

func TestRecognizeVisual(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scanner/visual-recognize/base64", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		httpx.JSON(w, http.StatusOK, map[string]any{"data": VisualRecognition{
			Matched: []Product{{ID: 4, Name: "Sardines"}},
			Ranked: []RankedProduct{
				{Product: Product{ID: 4, Name: "Sardines"}, Confidence: 0.91},
				{Product: Product{ID: 9, Name: "Corned Beef"}, Confidence: 0.44},
			},
			DominantColors: []string{"red", "yellow"},
		}})
	}))

	rec, err := svc.RecognizeVisual(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	require.Len(t, rec.Ranked, 2)
	assert.Equal(t, 0.91, rec.Ranked[0].Confidence)
	assert.Equal(t, []string{"red", "yellow"}, rec.DominantColors)
}

func TestRecognizeVisualRejectsEmptyFrame(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := svc.RecognizeVisual(context.Background(), "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}
