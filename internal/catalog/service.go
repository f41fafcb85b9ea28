package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/avryx-pos/avryx-pos/internal/platform/backend"
	"github.com/avryx-pos/avryx-pos/internal/platform/httpx"
)

// MinQueryLength is the threshold below which type-ahead search does not
// issue a request.
const MinQueryLength = 2

// DefaultSearchLimit caps type-ahead results when the caller passes no limit.
const DefaultSearchLimit = 5

// Service is the product resolution client. Lookups are never retried
// automatically; the operator re-triggers the action on failure.
type Service struct {
	api    *backend.Client
	logger *slog.Logger
	sfg    singleflight.Group
}

// NewService constructs a catalog service.
func NewService(api *backend.Client, logger *slog.Logger) *Service {
	return &Service{api: api, logger: logger}
}

type productEnvelope struct {
	Data *Product `json:"data"`
}

type productListEnvelope struct {
	Data []Product `json:"data"`
}

type recognitionEnvelope struct {
	Data *VisualRecognition `json:"data"`
}

// ResolveByBarcode looks a decoded symbol up by exact match. A miss is an
// expected outcome during scanning and comes back as (nil, nil), not an
// error.
func (s *Service) ResolveByBarcode(ctx context.Context, symbol string) (*Product, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, nil
	}

	var out productEnvelope
	err := s.api.Get(ctx, "/api/v1/products/barcode/"+url.PathEscape(symbol), &out)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve barcode: %w", err)
	}
	return out.Data, nil
}

// Search runs a case-insensitive substring match over product names and
// barcodes. Queries shorter than MinQueryLength return nothing without a
// request. Concurrent identical queries collapse to one request.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	key := fmt.Sprintf("%s|%d", strings.ToLower(query), limit)
	v, err, _ := s.sfg.Do(key, func() (any, error) {
		params := url.Values{}
		params.Set("search", query)
		params.Set("limit", fmt.Sprint(limit))

		var out productListEnvelope
		if err := s.api.Get(ctx, "/api/v1/products?"+params.Encode(), &out); err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
		if len(out.Data) > limit {
			out.Data = out.Data[:limit]
		}
		return out.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// RecognizeVisual submits a captured still frame (base64 JPEG) to the
// AI matcher and returns ranked candidates. Operator-invoked only.
func (s *Service) RecognizeVisual(ctx context.Context, imageBase64 string) (*VisualRecognition, error) {
	if imageBase64 == "" {
		return nil, fmt.Errorf("%w: empty frame", httpx.ErrValidation)
	}

	body := map[string]string{"image": imageBase64}
	var out recognitionEnvelope
	if err := s.api.Post(ctx, "/api/v1/scanner/visual-recognize/base64", body, &out); err != nil {
		return nil, fmt.Errorf("visual recognize: %w", err)
	}
	if out.Data == nil {
		return &VisualRecognition{}, nil
	}
	return out.Data, nil
}
