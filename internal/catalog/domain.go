// Package catalog resolves decoded symbols and operator queries into
// canonical product records owned by the store backend. The terminal never
// mutates products or stock directly.
package catalog

// Product is the backend's canonical product record.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Barcode       string  `json:"barcode"`
	Category      string  `json:"category,omitempty"`
	UnitPrice     float64 `json:"unit_price"`
	StockQuantity int     `json:"stock_quantity"`
	ImageURL      string  `json:"image_url,omitempty"`
}

// RankedProduct is a visual-recognition candidate with its match confidence.
type RankedProduct struct {
	Product
	Confidence float64 `json:"confidence"`
}

// VisualRecognition is the result of the AI-assisted fallback. The operator
// always confirms a candidate from the ranked list; nothing is auto-added.
type VisualRecognition struct {
	Matched        []Product       `json:"matchedProducts"`
	Ranked         []RankedProduct `json:"allRankedProducts"`
	DominantColors []string        `json:"dominantColors,omitempty"`
	Suggestions    []string        `json:"suggestions,omitempty"`
}
