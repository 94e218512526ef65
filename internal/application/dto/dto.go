// Package dto holds the views commands hand to presenters
package dto

import (
	"time"

	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

// JourneySummary is one line of a journey listing
type JourneySummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Nodes      int        `json:"nodes"`
	Edges      int        `json:"edges"`
	Visibility string     `json:"visibility"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	IsDirty    bool       `json:"isDirty"`
	SyncedAt   *time.Time `json:"syncedAt,omitempty"`
	Current    bool       `json:"current"`
}

// JourneyList is the result of listing journeys
type JourneyList struct {
	Journeys []JourneySummary `json:"journeys"`
}

// JourneyDetail is a full journey with its sync state
type JourneyDetail struct {
	Journey  journey.Journey `json:"journey"`
	IsDirty  bool            `json:"isDirty"`
	SyncedAt *time.Time      `json:"syncedAt,omitempty"`
}

// JournalList is the result of listing journals
type JournalList struct {
	Journals []journal.Journal `json:"journals"`
}

// NewJourneySummary summarizes a local journey record
func NewJourneySummary(rec *journey.Record, currentID string) JourneySummary {
	return JourneySummary{
		ID:         rec.ID,
		Name:       rec.Name,
		Nodes:      len(rec.Nodes),
		Edges:      len(rec.Edges),
		Visibility: string(rec.Visibility),
		UpdatedAt:  rec.UpdatedAt,
		IsDirty:    rec.IsDirty,
		SyncedAt:   rec.SyncedAt,
		Current:    rec.ID == currentID,
	}
}

// NewJourneyDetail wraps a local journey record
func NewJourneyDetail(rec *journey.Record) *JourneyDetail {
	return &JourneyDetail{Journey: rec.Journey, IsDirty: rec.IsDirty, SyncedAt: rec.SyncedAt}
}

// SyncStatus describes the session as seen by the status command
type SyncStatus struct {
	ServerURL       string `json:"serverUrl,omitempty"`
	UserID          string `json:"userId"`
	Anonymous       bool   `json:"anonymous"`
	Authenticated   bool   `json:"authenticated"`
	Online          bool   `json:"online"`
	Status          string `json:"status"`
	LastError       string `json:"lastError,omitempty"`
	Breaker         string `json:"breaker,omitempty"`
	PendingJourneys int    `json:"pendingJourneys"`
	PendingJournals int    `json:"pendingJournals"`
}

// SyncResult reports a sync command
type SyncResult struct {
	Full   bool     `json:"full"`
	Pushed int      `json:"pushed"`
	Pulled int      `json:"pulled"`
	Errors []string `json:"errors,omitempty"`
}

// LinkResult reports an account link
type LinkResult struct {
	UserID string `json:"userId"`
	Moved  int    `json:"moved"`
}

// VersionInfo reports the build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildInfo string `json:"buildInfo"`
}
