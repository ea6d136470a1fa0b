package model

import (
	"encoding/json"
	"time"
)

// Bill is the canonical record for a tracked piece of California legislation
type Bill struct {
	ID           int    `json:"id"`
	BillID       string `json:"bill_id"`
	Identifier   string `json:"identifier"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	Status       string `json:"status"`
	Chamber      string `json:"chamber"`
	Session      string `json:"session"`
	Jurisdiction string `json:"jurisdiction"`

	Classification []string `json:"classification"`
	Subject        []string `json:"subject"`
	Sponsors       []Sponsor `json:"sponsors"`
	ActionHistory  []Action  `json:"action_history"`
	Sources        []Source  `json:"sources"`
	Tags           []string  `json:"tags"`

	FirstActionDate         *time.Time `json:"first_action_date"`
	LatestActionDate        *time.Time `json:"latest_action_date"`
	LatestActionDescription string     `json:"latest_action_description"`
	LatestPassageDate       *time.Time `json:"latest_passage_date"`

	OpenStatesURL string `json:"openstates_url"`
	ImpactClause  string `json:"impact_clause"`

	// Enrichment fields, populated at most once per bill unless a
	// re-enrichment is explicitly requested.
	KeyProvisions []string    `json:"key_provisions"`
	Impact        string      `json:"impact"`
	AIAnalysis    *AIAnalysis `json:"ai_analysis"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enriched reports whether the bill already carries an AI summary.
func (b *Bill) Enriched() bool {
	return b.Summary != ""
}

// Sponsor is one bill author or co-author
type Sponsor struct {
	Name           string `json:"name"`
	Classification string `json:"classification"`
	Primary        bool   `json:"primary"`
}

// Action is one entry in a bill's legislative action history
type Action struct {
	Date           string   `json:"date"`
	Description    string   `json:"description"`
	Organization   string   `json:"organization"`
	Classification []string `json:"classification"`
}

// Source is a reference URL for a bill
type Source struct {
	URL  string `json:"url"`
	Note string `json:"note,omitempty"`
}

// AIAnalysis is the structured result of one summarization call.
// GeneratedAt marks the summary as AI-generated; a bill whose Summary
// is set but whose AIAnalysis is nil carries a source-supplied summary.
type AIAnalysis struct {
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	KeyProvisions []string  `json:"key_provisions"`
	Impact        string    `json:"impact"`
	Status        string    `json:"status"`
	FiscalImpact  string    `json:"fiscal_impact,omitempty"`
	EffectiveDate string    `json:"effective_date,omitempty"`
	Urgency       string    `json:"urgency,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// RawBill is a bill payload as returned by the OpenStates API
type RawBill struct {
	ID                      string           `json:"id"`
	Identifier              string           `json:"identifier"`
	Title                   string           `json:"title"`
	Session                 string           `json:"session"`
	Summary                 string           `json:"summary"`
	Classification          []string         `json:"classification"`
	Subject                 []string         `json:"subject"`
	Jurisdiction            RawOrganization  `json:"jurisdiction"`
	FromOrganization        RawOrganization  `json:"from_organization"`
	FirstActionDate         string           `json:"first_action_date"`
	LatestActionDate        string           `json:"latest_action_date"`
	LatestActionDescription string           `json:"latest_action_description"`
	LatestPassageDate       string           `json:"latest_passage_date"`
	Abstracts               []RawAbstract    `json:"abstracts"`
	Sponsorships            []RawSponsorship `json:"sponsorships"`
	Actions                 []RawAction      `json:"actions"`
	Sources                 []Source         `json:"sources"`
	OpenStatesURL           string           `json:"openstates_url"`
	Extras                  RawExtras        `json:"extras"`
}

// RawOrganization is a named organization reference in a source payload
type RawOrganization struct {
	Name string `json:"name"`
}

// RawAbstract is one abstract entry. The source emits either an object
// with an "abstract" key or a bare string; both decode into Abstract.
type RawAbstract struct {
	Abstract string `json:"abstract"`
	Note     string `json:"note,omitempty"`
}

func (a *RawAbstract) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Abstract = s
		return nil
	}

	type plain RawAbstract
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = RawAbstract(v)
	return nil
}

// RawSponsorship is one sponsorship entry in a source payload
type RawSponsorship struct {
	Name           string `json:"name"`
	Classification string `json:"classification"`
	Primary        bool   `json:"primary"`
}

// RawAction is one action entry in a source payload
type RawAction struct {
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Organization   RawOrganization `json:"organization"`
	Classification []string        `json:"classification"`
}

// RawExtras holds the loosely structured extras block of a source payload
type RawExtras struct {
	Tags         []string `json:"tags"`
	ImpactClause string   `json:"impact_clause"`
}

// BillPage is one page of bills from the source API
type BillPage struct {
	Results    []RawBill  `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the source API's paging metadata
type Pagination struct {
	TotalCount int `json:"total_count"`
}
