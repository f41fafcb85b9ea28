package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outcome of one processed scan.
const (
	OutcomeAdded    = "added"
	OutcomeNotFound = "not_found"
)

// HistoryEntry is one processed scan, kept for operator diagnostics. The
// cart itself is never persisted; this log is append-only and capped.
type HistoryEntry struct {
	Symbol      string    `json:"symbol"`
	ProductID   int64     `json:"product_id,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	Outcome     string    `json:"outcome"`
	At          time.Time `json:"at"`
}

const defaultHistorySize = 100

// HistoryStore keeps recent scans in a capped Redis list, newest first.
// A nil store disables history without touching call sites.
type HistoryStore struct {
	rdb  *redis.Client
	key  string
	size int64
}

// NewHistoryStore wraps a Redis client. A non-positive size defaults to 100.
func NewHistoryStore(rdb *redis.Client, size int) *HistoryStore {
	if rdb == nil {
		return nil
	}
	if size <= 0 {
		size = defaultHistorySize
	}
	return &HistoryStore{rdb: rdb, key: "posterm:scan_history", size: int64(size)}
}

// Record appends an entry, trimming the list to its cap.
func (h *HistoryStore) Record(ctx context.Context, e HistoryEntry) error {
	if h == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	pipe := h.rdb.TxPipeline()
	pipe.LPush(ctx, h.key, payload)
	pipe.LTrim(ctx, h.key, 0, h.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record scan history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if h == nil {
		return nil, nil
	}
	if limit <= 0 || int64(limit) > h.size {
		limit = int(h.size)
	}
	raw, err := h.rdb.LRange(ctx, h.key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read scan history: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
