package model

import (
	"encoding/json"
	"time"
)

// CacheEntry holds a verbatim source payload keyed by bill id.
// At most one entry exists per bill; writes overwrite in place.
type CacheEntry struct {
	ID        int             `json:"id"`
	BillID    string          `json:"bill_id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Expired reports whether the entry is older than window. An entry
// that was never written is always expired.
func (e *CacheEntry) Expired(window time.Duration) bool {
	if e.UpdatedAt.IsZero() {
		return true
	}
	return time.Since(e.UpdatedAt) > window
}

// CacheStats partitions cache entries by the fixed 24-hour reporting
// boundary, independent of any configured expiry window.
type CacheStats struct {
	Total    int `json:"total"`
	Recent24 int `json:"recent_24h"`
	Older24  int `json:"older_24h"`
}
