package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheEntryExpired(t *testing.T) {
	window := 24 * time.Hour
	now := time.Now().UTC()

	cases := []struct {
		name      string
		updatedAt time.Time
		want      bool
	}{
		{"fresh entry", now.Add(-time.Hour), false},
		{"within the window", now.Add(-23 * time.Hour), false},
		{"past the window", now.Add(-window - time.Minute), true},
		{"never written", time.Time{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := &CacheEntry{BillID: "ocd-bill/abc", UpdatedAt: tc.updatedAt}
			assert.Equal(t, tc.want, entry.Expired(window))
		})
	}
}
