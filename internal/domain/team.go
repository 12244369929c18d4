package domain

import (
	"fmt"
	"time"
)

// TeamStatus gates every access to a tenant.
type TeamStatus string

const (
	TeamActive   TeamStatus = "ACTIVE"
	TeamInactive TeamStatus = "INACTIVE"
)

// Team is the tenant boundary. Teams live in the root "teams" collection and every
// other collection is scoped under teams/{id}.
type Team struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	Status    TeamStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// DocID returns the store document id.
func (t Team) DocID() string { return t.ID }

// Validate checks the fields required before a team is written.
func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.Code == "" {
		return fmt.Errorf("team code is required")
	}
	if t.Status != TeamActive && t.Status != TeamInactive {
		return fmt.Errorf("invalid team status: %q", t.Status)
	}
	return nil
}

// Opponent is a rival team.
type Opponent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

func (o Opponent) DocID() string { return o.ID }

func (o Opponent) Validate() error {
	if o.ID == "" || o.Name == "" {
		return fmt.Errorf("opponent id and name are required")
	}
	return nil
}

// Venue is a court the team plays at.
type Venue struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	MapsURL string `json:"mapsUrl,omitempty"`
}

func (v Venue) DocID() string { return v.ID }

func (v Venue) Validate() error {
	if v.ID == "" || v.Name == "" {
		return fmt.Errorf("venue id and name are required")
	}
	return nil
}

// Tournament groups matches into numbered rounds.
type Tournament struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

func (t Tournament) DocID() string { return t.ID }

func (t Tournament) Validate() error {
	if t.ID == "" || t.Name == "" {
		return fmt.Errorf("tournament id and name are required")
	}
	if t.Year < 1900 || t.Year > 3000 {
		return fmt.Errorf("invalid tournament year: %d", t.Year)
	}
	return nil
}

// StandingsPhoto is an uploaded picture of the league table.
type StandingsPhoto struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	UploadedAt int64  `json:"uploadedAt"`
}

func (s StandingsPhoto) DocID() string { return s.ID }

func (s StandingsPhoto) Validate() error {
	if s.ID == "" || s.URL == "" {
		return fmt.Errorf("standings photo id and url are required")
	}
	return nil
}

// TeamInfo is the singleton myTeam/info.
type TeamInfo struct {
	Name        string `json:"name"`
	ShieldURL   string `json:"shieldUrl,omitempty"`
	FoundedYear int    `json:"foundedYear,omitempty"`
}

func (TeamInfo) DocID() string { return TeamInfoDocID }

func (t TeamInfo) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}
	return nil
}

// StopwatchPreferences is the persisted sound configuration of the field timer.
type StopwatchPreferences struct {
	Volume           float64 `json:"volume" yaml:"volume"`
	Muted            bool    `json:"muted" yaml:"muted"`
	Sound            string  `json:"sound" yaml:"sound"`
	AlertIntervalSec int     `json:"alertIntervalSec" yaml:"alertIntervalSec"`
}

// AppSettings is the singleton settings/appSettings.
type AppSettings struct {
	MaxDailyGameAttempts int                  `json:"maxDailyGameAttempts"`
	Stopwatch            StopwatchPreferences `json:"stopwatch"`
}

func (AppSettings) DocID() string { return AppSettingsDocID }

func (s AppSettings) Validate() error {
	if s.MaxDailyGameAttempts < 0 {
		return fmt.Errorf("max daily game attempts must not be negative")
	}
	if s.Stopwatch.Volume < 0 || s.Stopwatch.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1")
	}
	if s.Stopwatch.AlertIntervalSec < 0 {
		return fmt.Errorf("alert interval must not be negative")
	}
	return nil
}

// DefaultAppSettings is used when the settings singleton does not exist yet.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		MaxDailyGameAttempts: 3,
		Stopwatch: StopwatchPreferences{
			Volume:           0.8,
			Sound:            "whistle",
			AlertIntervalSec: 60,
		},
	}
}

// Collection names under teams/{id}.
const (
	CollectionTeams           = "teams"
	CollectionPlayers         = "players"
	CollectionMatches         = "matches"
	CollectionOpponents       = "opponents"
	CollectionVenues          = "venues"
	CollectionTournaments     = "tournaments"
	CollectionSettings        = "settings"
	CollectionMyTeam          = "myTeam"
	CollectionStandingsPhotos = "standingsPhotos"
	CollectionMessages        = "messages"

	AppSettingsDocID = "appSettings"
	TeamInfoDocID    = "info"
)

// MessagesCollection returns the chat sub-collection path of a match.
func MessagesCollection(matchID int64) string {
	return fmt.Sprintf("%s/%d/%s", CollectionMatches, matchID, CollectionMessages)
}
