package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillEnriched(t *testing.T) {
	assert.False(t, (&Bill{}).Enriched())
	assert.True(t, (&Bill{Summary: "A plain language summary."}).Enriched())

	// A source-supplied summary counts; enrichment is gated on the summary
	// text, not on analysis provenance
	assert.True(t, (&Bill{Summary: "From the source", AIAnalysis: nil}).Enriched())
}
