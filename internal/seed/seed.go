// Package seed holds the dataset served when no document store is configured.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

//go:embed seed.yaml
var bundled []byte

// Dataset is one team's full data.
type Dataset struct {
	Team            domain.Team             `json:"team"`
	Info            domain.TeamInfo         `json:"info"`
	Settings        domain.AppSettings      `json:"settings"`
	Players         []domain.Player         `json:"players"`
	Matches         []domain.Match          `json:"matches"`
	Opponents       []domain.Opponent       `json:"opponents"`
	Venues          []domain.Venue          `json:"venues"`
	Tournaments     []domain.Tournament     `json:"tournaments"`
	StandingsPhotos []domain.StandingsPhoto `json:"standingsPhotos"`
}

// Bundled parses the embedded dataset.
func Bundled() (*Dataset, error) {
	return Parse(bundled)
}

// Parse decodes a YAML dataset. Field names follow the stored JSON layout.
func Parse(raw []byte) (*Dataset, error) {
	var tree interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	body, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("convert seed yaml: %w", err)
	}
	var d Dataset
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &d, nil
}

// placement is one entity and the collection it is stored in under the team.
type placement struct {
	collection string
	entity     repository.Entity
}

func (d *Dataset) placements() []placement {
	out := []placement{
		{domain.CollectionMyTeam, d.Info},
		{domain.CollectionSettings, d.Settings},
	}
	for _, p := range d.Players {
		out = append(out, placement{domain.CollectionPlayers, p})
	}
	for _, m := range d.Matches {
		out = append(out, placement{domain.CollectionMatches, m})
	}
	for _, o := range d.Opponents {
		out = append(out, placement{domain.CollectionOpponents, o})
	}
	for _, v := range d.Venues {
		out = append(out, placement{domain.CollectionVenues, v})
	}
	for _, t := range d.Tournaments {
		out = append(out, placement{domain.CollectionTournaments, t})
	}
	for _, s := range d.StandingsPhotos {
		out = append(out, placement{domain.CollectionStandingsPhotos, s})
	}
	return out
}

// Validate checks every entity of the dataset.
func (d *Dataset) Validate() error {
	if err := d.Team.Validate(); err != nil {
		return fmt.Errorf("seed team: %w", err)
	}
	for _, p := range d.placements() {
		if err := p.entity.Validate(); err != nil {
			return fmt.Errorf("seed %s/%s: %w", p.collection, p.entity.DocID(), err)
		}
	}
	return nil
}

// Apply writes the dataset through a. The team document goes to the root collection
// and everything else under the team id.
func (d *Dataset) Apply(ctx context.Context, a *repository.Adapter) error {
	if err := a.SaveDocument(ctx, "", domain.CollectionTeams, d.Team); err != nil {
		return fmt.Errorf("seed team: %w", err)
	}
	for _, p := range d.placements() {
		if err := a.SaveDocument(ctx, d.Team.ID, p.collection, p.entity); err != nil {
			return fmt.Errorf("seed %s/%s: %w", p.collection, p.entity.DocID(), err)
		}
	}
	return nil
}
