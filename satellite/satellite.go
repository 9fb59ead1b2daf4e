// Package satellite routes requests to independently deployed, sport specific
// backends ("satellites") that implement a fixed summary/profile/roster
// contract.
package satellite

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Definition describes one satellite. Definitions are loaded once at startup.
type Definition struct {
	Disciplina string `json:"disciplina" yaml:"disciplina"`
	Name       string `json:"name" yaml:"name"`
	BaseURL    string `json:"baseUrl" yaml:"baseUrl"`
}

// PlayerSummary is the answer to GET /satellite/players/{personId}/summary.
type PlayerSummary struct {
	PersonID     uuid.UUID  `json:"personId"`
	Disciplina   string     `json:"disciplina"`
	RankLabel    string     `json:"rankLabel"`
	Eligible     bool       `json:"eligible"`
	LastActivity *time.Time `json:"lastActivity"`
}

// PlayerProfile is the answer to GET /satellite/players/{personId}/profile.
// Data is sport specific and passed through untouched.
type PlayerProfile struct {
	PersonID uuid.UUID      `json:"personId"`
	Summary  PlayerSummary  `json:"summary"`
	Data     map[string]any `json:"data"`
}

// RosterEntry is one player in a club roster.
type RosterEntry struct {
	PersonID  uuid.UUID      `json:"personId"`
	Nome      string         `json:"nome"`
	Cognome   string         `json:"cognome"`
	RankLabel string         `json:"rankLabel"`
	Stats     map[string]any `json:"stats"`
}

// Roster is the answer to GET /satellite/roster?asd={asdId}&season={seasonId}.
type Roster struct {
	Disciplina string        `json:"disciplina"`
	Entries    []RosterEntry `json:"entries"`
}

// Client speaks the satellite contract with one backend.
type Client interface {
	Summary(ctx context.Context, personID uuid.UUID) (*PlayerSummary, error)
	Profile(ctx context.Context, personID uuid.UUID) (*PlayerProfile, error)
	Roster(ctx context.Context, asdID, seasonID uuid.UUID) (*Roster, error)
}
