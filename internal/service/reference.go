package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
)

// ReferenceService edits the lookup collections matches point at: opponents,
// venues, tournaments, standings photos and the team card.
type ReferenceService struct {
	adapter *repository.Adapter
	now     func() time.Time
}

// NewReferenceService creates a ReferenceService.
func NewReferenceService(adapter *repository.Adapter) *ReferenceService {
	return &ReferenceService{adapter: adapter, now: time.Now}
}

func (s *ReferenceService) SaveOpponent(ctx context.Context, teamID string, o domain.Opponent) (domain.Opponent, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return o, s.adapter.SaveDocument(ctx, teamID, domain.CollectionOpponents, o)
}

func (s *ReferenceService) SaveVenue(ctx context.Context, teamID string, v domain.Venue) (domain.Venue, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return v, s.adapter.SaveDocument(ctx, teamID, domain.CollectionVenues, v)
}

func (s *ReferenceService) SaveTournament(ctx context.Context, teamID string, t domain.Tournament) (domain.Tournament, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Year == 0 {
		t.Year = s.now().Year()
	}
	return t, s.adapter.SaveDocument(ctx, teamID, domain.CollectionTournaments, t)
}

// AddStandingsPhoto stores an uploaded standings picture by URL.
func (s *ReferenceService) AddStandingsPhoto(ctx context.Context, teamID, url string) (domain.StandingsPhoto, error) {
	p := domain.StandingsPhoto{ID: uuid.NewString(), URL: url, UploadedAt: s.now().UnixMilli()}
	return p, s.adapter.SaveDocument(ctx, teamID, domain.CollectionStandingsPhotos, p)
}

// SaveTeamInfo rewrites the team card singleton.
func (s *ReferenceService) SaveTeamInfo(ctx context.Context, teamID string, info domain.TeamInfo) error {
	return s.adapter.SaveDocument(ctx, teamID, domain.CollectionMyTeam, info)
}

// Delete removes a document of one of the reference collections.
func (s *ReferenceService) Delete(ctx context.Context, teamID, collection, id string) error {
	switch collection {
	case domain.CollectionOpponents, domain.CollectionVenues, domain.CollectionTournaments, domain.CollectionStandingsPhotos:
	default:
		return domain.ErrValidation("not a reference collection: " + collection)
	}
	return s.adapter.DeleteDocument(ctx, teamID, collection, id)
}
