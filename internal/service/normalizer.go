package service

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

// statusMaxLen caps derived status strings
const statusMaxLen = 200

// ErrMissingBillID is returned when a source payload carries no bill id
var ErrMissingBillID = errors.New("bill id is required")

// Normalizer converts raw OpenStates payloads into canonical bill records
type Normalizer struct {
	warnLogger *log.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{
		warnLogger: log.New(os.Stderr, "WARN: ", log.LstdFlags),
	}
}

// Normalize maps a raw payload onto a canonical bill record and builds the
// text blob used for AI analysis. Timestamps managed by the store are left
// unset.
func (n *Normalizer) Normalize(raw *model.RawBill) (*model.Bill, string, error) {
	if raw.ID == "" {
		return nil, "", ErrMissingBillID
	}

	bill := &model.Bill{
		BillID:                  raw.ID,
		Identifier:              raw.Identifier,
		Title:                   raw.Title,
		Summary:                 raw.Summary,
		Status:                  extractStatus(raw),
		Chamber:                 raw.FromOrganization.Name,
		Session:                 raw.Session,
		Jurisdiction:            raw.Jurisdiction.Name,
		Classification:          emptyIfNil(raw.Classification),
		Subject:                 emptyIfNil(raw.Subject),
		Sponsors:                mapSponsors(raw.Sponsorships),
		ActionHistory:           mapActions(raw.Actions),
		Sources:                 emptyIfNilSources(raw.Sources),
		Tags:                    emptyIfNil(raw.Extras.Tags),
		FirstActionDate:         n.parseDateSafely(raw.FirstActionDate),
		LatestActionDate:        n.parseDateSafely(raw.LatestActionDate),
		LatestActionDescription: raw.LatestActionDescription,
		LatestPassageDate:       n.parseDateSafely(raw.LatestPassageDate),
		OpenStatesURL:           raw.OpenStatesURL,
		ImpactClause:            raw.Extras.ImpactClause,
		KeyProvisions:           []string{},
	}

	return bill, buildAnalysisText(raw), nil
}

// parseDateSafely parses the date formats OpenStates emits, trying ISO-8601
// with a time component first, then bare and space-separated forms. Values
// that match nothing are dropped with a warning.
func (n *Normalizer) parseDateSafely(value string) *time.Time {
	if value == "" {
		return nil
	}

	if strings.Contains(value, "T") {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return &t
		}
		if t, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
			return &t
		}
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return &t
	}

	n.warnLogger.Printf("could not parse date %q", value)
	return nil
}

// extractStatus derives a human-readable status string. The source's own
// latest_action_description wins; otherwise the most recent action is
// composed into "{description} on {date} in {organization}".
func extractStatus(raw *model.RawBill) string {
	if raw.LatestActionDescription != "" {
		return truncate(raw.LatestActionDescription, statusMaxLen)
	}

	if len(raw.Actions) == 0 {
		return "unknown"
	}

	latest := raw.Actions[0]
	for _, action := range raw.Actions[1:] {
		if action.Date > latest.Date {
			latest = action
		}
	}

	var parts []string
	if latest.Description != "" {
		parts = append(parts, latest.Description)
	}
	if latest.Date != "" {
		parts = append(parts, "on "+latest.Date)
	}
	if latest.Organization.Name != "" {
		parts = append(parts, "in "+latest.Organization.Name)
	}
	return truncate(strings.Join(parts, " "), statusMaxLen)
}

// buildAnalysisText assembles the prompt text for AI analysis from the
// title, abstracts, impact clause, and latest action
func buildAnalysisText(raw *model.RawBill) string {
	var parts []string
	if raw.Title != "" {
		parts = append(parts, "Title: "+raw.Title)
	}
	for _, abstract := range raw.Abstracts {
		parts = append(parts, "Abstract: "+abstract.Abstract)
	}
	if raw.Extras.ImpactClause != "" {
		parts = append(parts, "Impact Clause: "+raw.Extras.ImpactClause)
	}
	if raw.LatestActionDescription != "" {
		parts = append(parts, "Latest Action: "+raw.LatestActionDescription)
	}
	return strings.Join(parts, "\n\n")
}

func mapSponsors(sponsorships []model.RawSponsorship) []model.Sponsor {
	sponsors := make([]model.Sponsor, len(sponsorships))
	for i, s := range sponsorships {
		sponsors[i] = model.Sponsor{
			Name:           s.Name,
			Classification: s.Classification,
			Primary:        s.Primary,
		}
	}
	return sponsors
}

func mapActions(actions []model.RawAction) []model.Action {
	history := make([]model.Action, len(actions))
	for i, a := range actions {
		history[i] = model.Action{
			Date:           a.Date,
			Description:    a.Description,
			Organization:   a.Organization.Name,
			Classification: emptyIfNil(a.Classification),
		}
	}
	return history
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyIfNilSources(sources []model.Source) []model.Source {
	if sources == nil {
		return []model.Source{}
	}
	return sources
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
