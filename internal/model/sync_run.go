package model

import "time"

// SyncRun records one batch ingestion run
type SyncRun struct {
	ID         string     `json:"id"`
	Selector   string     `json:"selector"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Processed  int        `json:"processed"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Errors     int        `json:"errors"`
}

// Triggers for SyncRun records
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerAPI       = "api"
)
