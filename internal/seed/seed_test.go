package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/store"
)

func TestBundled_IsValid(t *testing.T) {
	d, err := Bundled()
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	assert.Equal(t, "demo", d.Team.ID)
	assert.Equal(t, domain.TeamActive, d.Team.Status)
	assert.NotEmpty(t, d.Players)
	assert.NotEmpty(t, d.Matches)

	first := d.Matches[0]
	assert.Equal(t, domain.MatchFinished, first.Status)
	assert.Equal(t, 8.0, first.Ratings["1"]["4"])
	require.NotNil(t, first.ThirdHalf)
	assert.Len(t, first.ThirdHalf.Items, 2)
}

func TestParse_RejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("players: [\n"))
	assert.Error(t, err)
}

func TestApply_WritesThroughAdapter(t *testing.T) {
	d, err := Bundled()
	require.NoError(t, err)

	a := repository.NewAdapter(store.NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	require.NoError(t, d.Apply(ctx, a))

	team, err := repository.Get[domain.Team](ctx, a, "", domain.CollectionTeams, "demo")
	require.NoError(t, err)
	assert.Equal(t, d.Team.Name, team.Name)

	players, err := repository.List[domain.Player](ctx, a, "demo", domain.CollectionPlayers, "")
	require.NoError(t, err)
	assert.Len(t, players, len(d.Players))

	settings, err := repository.Get[domain.AppSettings](ctx, a, "demo", domain.CollectionSettings, domain.AppSettingsDocID)
	require.NoError(t, err)
	assert.Equal(t, "whistle", settings.Stopwatch.Sound)
}
