package service

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redbirdapp/redbird/internal/model"
)

func TestNormalize_MapsSourceFields(t *testing.T) {
	n := NewNormalizer()
	raw := &model.RawBill{
		ID:                      "ocd-bill/abc",
		Identifier:              "AB 123",
		Title:                   "An act relating to housing",
		Session:                 "20252026",
		Summary:                 "",
		Classification:          []string{"bill"},
		Subject:                 []string{"Housing"},
		Jurisdiction:            model.RawOrganization{Name: "California"},
		FromOrganization:        model.RawOrganization{Name: "Senate"},
		FirstActionDate:         "2025-01-10",
		LatestActionDate:        "2025-02-20T09:30:00Z",
		LatestActionDescription: "Read second time",
		Sponsorships: []model.RawSponsorship{
			{Name: "Nguyen", Classification: "primary", Primary: true},
			{Name: "Lopez", Classification: "cosponsor", Primary: false},
		},
		Actions: []model.RawAction{
			{Date: "2025-01-10", Description: "Introduced", Organization: model.RawOrganization{Name: "Senate"}, Classification: []string{"introduction"}},
		},
		Sources:       []model.Source{{URL: "https://example.org/ab123"}},
		OpenStatesURL: "https://openstates.org/ca/bills/20252026/AB123",
		Extras:        model.RawExtras{Tags: []string{"housing"}, ImpactClause: "An act to amend Section 1"},
	}

	bill, analysisText, err := n.Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "ocd-bill/abc", bill.BillID)
	assert.Equal(t, "AB 123", bill.Identifier)
	assert.Equal(t, "An act relating to housing", bill.Title)
	assert.Equal(t, "Read second time", bill.Status)
	assert.Equal(t, "Senate", bill.Chamber)
	assert.Equal(t, "20252026", bill.Session)
	assert.Equal(t, "California", bill.Jurisdiction)
	assert.Equal(t, []string{"bill"}, bill.Classification)
	assert.Equal(t, []string{"housing"}, bill.Tags)
	assert.Equal(t, "An act to amend Section 1", bill.ImpactClause)
	assert.Equal(t, "https://openstates.org/ca/bills/20252026/AB123", bill.OpenStatesURL)

	require.Len(t, bill.Sponsors, 2)
	assert.Equal(t, model.Sponsor{Name: "Nguyen", Classification: "primary", Primary: true}, bill.Sponsors[0])

	require.Len(t, bill.ActionHistory, 1)
	assert.Equal(t, "Introduced", bill.ActionHistory[0].Description)
	assert.Equal(t, "Senate", bill.ActionHistory[0].Organization)

	require.NotNil(t, bill.FirstActionDate)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), *bill.FirstActionDate)
	require.NotNil(t, bill.LatestActionDate)
	assert.Equal(t, time.Date(2025, 2, 20, 9, 30, 0, 0, time.UTC), *bill.LatestActionDate)
	assert.Nil(t, bill.LatestPassageDate)

	// Store-managed timestamps stay unset
	assert.True(t, bill.CreatedAt.IsZero())
	assert.True(t, bill.UpdatedAt.IsZero())

	assert.Contains(t, analysisText, "Title: An act relating to housing")
}

func TestNormalize_RejectsMissingID(t *testing.T) {
	n := NewNormalizer()

	bill, _, err := n.Normalize(&model.RawBill{Identifier: "AB 1"})

	assert.ErrorIs(t, err, ErrMissingBillID)
	assert.Nil(t, bill)
}

func TestNormalize_EmptyCollectionsAreNeverNil(t *testing.T) {
	n := NewNormalizer()

	bill, _, err := n.Normalize(&model.RawBill{ID: "ocd-bill/abc"})
	require.NoError(t, err)

	assert.NotNil(t, bill.Classification)
	assert.NotNil(t, bill.Subject)
	assert.NotNil(t, bill.Sponsors)
	assert.NotNil(t, bill.ActionHistory)
	assert.NotNil(t, bill.Sources)
	assert.NotNil(t, bill.Tags)
	assert.NotNil(t, bill.KeyProvisions)
	assert.Empty(t, bill.Classification)
}

func TestExtractStatus_PrefersLatestActionDescription(t *testing.T) {
	raw := &model.RawBill{
		ID:                      "ocd-bill/abc",
		LatestActionDescription: "Approved by the Governor",
		Actions: []model.RawAction{
			{Date: "2024-01-15", Description: "Introduced", Organization: model.RawOrganization{Name: "Assembly"}},
		},
	}

	assert.Equal(t, "Approved by the Governor", extractStatus(raw))
}

func TestExtractStatus_TruncatesLongDescriptions(t *testing.T) {
	raw := &model.RawBill{
		ID:                      "ocd-bill/abc",
		LatestActionDescription: strings.Repeat("x", 250),
	}

	status := extractStatus(raw)
	assert.Len(t, status, 200)
}

func TestExtractStatus_ComposesFromMostRecentAction(t *testing.T) {
	raw := &model.RawBill{
		ID: "ocd-bill/abc",
		Actions: []model.RawAction{
			{Date: "2024-01-15", Description: "Introduced", Organization: model.RawOrganization{Name: "Assembly"}},
			{Date: "2024-03-05", Description: "Passed Assembly", Organization: model.RawOrganization{Name: "Assembly"}},
			{Date: "2024-02-01", Description: "Referred to committee", Organization: model.RawOrganization{Name: "Assembly"}},
		},
	}

	assert.Equal(t, "Passed Assembly on 2024-03-05 in Assembly", extractStatus(raw))
}

func TestExtractStatus_OmitsMissingActionParts(t *testing.T) {
	raw := &model.RawBill{
		ID: "ocd-bill/abc",
		Actions: []model.RawAction{
			{Date: "2024-03-05"},
		},
	}

	assert.Equal(t, "on 2024-03-05", extractStatus(raw))
}

func TestExtractStatus_UnknownWithoutActions(t *testing.T) {
	assert.Equal(t, "unknown", extractStatus(&model.RawBill{ID: "ocd-bill/abc"}))
}

func TestParseDateSafely(t *testing.T) {
	n := NewNormalizer()
	n.warnLogger = log.New(io.Discard, "", 0)

	cases := []struct {
		value string
		want  *time.Time
	}{
		{"", nil},
		{"2024-01-15", timePtr(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))},
		{"2024-01-15T10:30:00Z", timePtr(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"2024-01-15T10:30:00", timePtr(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"2024-01-15 10:30:00", timePtr(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))},
		{"2024-13-45", nil},
		{"not a date", nil},
	}

	for _, tc := range cases {
		got := n.parseDateSafely(tc.value)
		if tc.want == nil {
			assert.Nil(t, got, "value %q", tc.value)
			continue
		}
		require.NotNil(t, got, "value %q", tc.value)
		assert.True(t, got.Equal(*tc.want), "value %q: got %v", tc.value, got)
	}
}

func TestBuildAnalysisText_AssemblesSections(t *testing.T) {
	raw := &model.RawBill{
		ID:    "ocd-bill/abc",
		Title: "An act relating to water",
		Abstracts: []model.RawAbstract{
			{Abstract: "Requires annual water quality reports."},
			{Abstract: "Funds enforcement."},
		},
		LatestActionDescription: "Read first time",
		Extras:                  model.RawExtras{ImpactClause: "An act to add Section 2"},
	}

	text := buildAnalysisText(raw)

	want := "Title: An act relating to water\n\n" +
		"Abstract: Requires annual water quality reports.\n\n" +
		"Abstract: Funds enforcement.\n\n" +
		"Impact Clause: An act to add Section 2\n\n" +
		"Latest Action: Read first time"
	assert.Equal(t, want, text)
}

func TestBuildAnalysisText_SkipsEmptySections(t *testing.T) {
	text := buildAnalysisText(&model.RawBill{ID: "ocd-bill/abc", Title: "Only a title"})
	assert.Equal(t, "Title: Only a title", text)
}

func TestRawAbstract_DecodesObjectAndStringForms(t *testing.T) {
	payload := []byte(`{
		"id": "ocd-bill/abc",
		"abstracts": [
			{"abstract": "From an object", "note": "summary"},
			"From a bare string"
		]
	}`)

	var raw model.RawBill
	require.NoError(t, json.Unmarshal(payload, &raw))

	require.Len(t, raw.Abstracts, 2)
	assert.Equal(t, "From an object", raw.Abstracts[0].Abstract)
	assert.Equal(t, "summary", raw.Abstracts[0].Note)
	assert.Equal(t, "From a bare string", raw.Abstracts[1].Abstract)
}

func timePtr(t time.Time) *time.Time { return &t }
