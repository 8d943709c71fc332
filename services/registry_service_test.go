package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/repositories"
)

func TestRegisterRefereeAssignsSequentialIDs(t *testing.T) {
	r := testRegistry(t, true)

	first := registerReferee(t, r, "http://ref1.test/mcp")
	second := registerReferee(t, r, "http://ref2.test/mcp")

	assert.Equal(t, "REF01", first.RefereeID)
	assert.Equal(t, "REF02", second.RefereeID)
	assert.Equal(t, models.RegistrationAccepted, first.Status)
	assert.Equal(t, models.MsgRefereeRegisterResponse, first.MessageType)
	assert.NotEqual(t, first.AuthToken, second.AuthToken)
	assert.Nil(t, first.Reason)
}

func TestRegisterRefereeMissingFields(t *testing.T) {
	r := testRegistry(t, true)
	full := models.RefereeMeta{
		DisplayName:     "ref",
		Version:         "1.0.0",
		GameTypes:       []string{"even_odd"},
		ContactEndpoint: "http://ref.test/mcp",
	}

	tests := []struct {
		field  string
		mutate func(m *models.RefereeMeta)
	}{
		{"display_name", func(m *models.RefereeMeta) { m.DisplayName = "" }},
		{"version", func(m *models.RefereeMeta) { m.Version = "" }},
		{"game_types", func(m *models.RefereeMeta) { m.GameTypes = nil }},
		{"contact_endpoint", func(m *models.RefereeMeta) { m.ContactEndpoint = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			meta := full
			tt.mutate(&meta)
			_, err := r.RegisterReferee(context.Background(), &meta)

			var mf *MissingFieldError
			require.True(t, errors.As(err, &mf))
			assert.Equal(t, tt.field, mf.Field)
		})
	}
	assert.Empty(t, r.Referees())
}

func TestRegisterPlayer(t *testing.T) {
	r := testRegistry(t, true)

	resp := registerPlayers(t, r, 2)
	assert.Equal(t, "P01", resp[0].PlayerID)
	assert.Equal(t, "P02", resp[1].PlayerID)
	assert.Equal(t, "league_test", resp[0].LeagueID)
	assert.Equal(t, models.MsgLeagueRegisterResponse, resp[0].MessageType)

	players := r.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "P01", players[0].ID)
	assert.Equal(t, models.RolePlayer, players[0].Role)
}

func TestRegisterPlayerAfterCloseIsRejected(t *testing.T) {
	r := testRegistry(t, true)
	registerPlayers(t, r, 1)

	assert.True(t, r.CloseRegistration())
	assert.False(t, r.CloseRegistration())
	assert.False(t, r.RegistrationOpen())

	resp, err := r.RegisterPlayer(context.Background(), &models.PlayerMeta{
		DisplayName:     "late",
		ProtocolVersion: "2.1.0",
		GameTypes:       []string{"even_odd"},
		ContactEndpoint: "http://late.test/mcp",
	})
	assert.ErrorIs(t, err, ErrRegistrationClosed)
	assert.Nil(t, resp)
	assert.Len(t, r.Players(), 1)
}

func TestRegisterPlayerProtocolVersion(t *testing.T) {
	r := testRegistry(t, true)
	meta := func(v string) *models.PlayerMeta {
		return &models.PlayerMeta{
			DisplayName:     "p",
			ProtocolVersion: v,
			GameTypes:       []string{"even_odd"},
			ContactEndpoint: "http://p.test/mcp",
		}
	}

	_, err := r.RegisterPlayer(context.Background(), meta("1.0.0"))
	assert.ErrorIs(t, err, ErrProtocolVersionMismatch)

	_, err = r.RegisterPlayer(context.Background(), meta(""))
	assert.ErrorIs(t, err, ErrProtocolVersionMismatch)

	resp, err := r.RegisterPlayer(context.Background(), meta("2.0.3"))
	require.NoError(t, err)
	assert.Equal(t, "P01", resp.PlayerID)
}

func TestRegisterPlayerUnsupportedGameIsSoftRejection(t *testing.T) {
	r := testRegistry(t, true)

	resp, err := r.RegisterPlayer(context.Background(), &models.PlayerMeta{
		DisplayName:     "chess only",
		ProtocolVersion: "2.1.0",
		GameTypes:       []string{"chess"},
		ContactEndpoint: "http://p.test/mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, resp.Status)
	require.NotNil(t, resp.Reason)
	assert.Equal(t, "Game type not supported", *resp.Reason)
	assert.Empty(t, resp.PlayerID)
	assert.Empty(t, resp.AuthToken)

	// Rejections do not consume ids.
	ok := registerPlayers(t, r, 1)
	assert.Equal(t, "P01", ok[0].PlayerID)
}

func TestValidateToken(t *testing.T) {
	r := testRegistry(t, true)
	player := registerPlayers(t, r, 1)[0]
	ref := registerReferee(t, r, "http://ref.test/mcp")

	tests := []struct {
		name   string
		sender string
		token  string
		want   bool
	}{
		{"player ok", "player:P01", player.AuthToken, true},
		{"referee ok", "referee:REF01", ref.AuthToken, true},
		{"wrong token", "player:P01", ref.AuthToken, false},
		{"wrong role", "referee:P01", player.AuthToken, false},
		{"no role", "P01", player.AuthToken, false},
		{"unknown id", "player:P09", player.AuthToken, false},
		{"empty token", "player:P01", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ValidateToken(tt.sender, tt.token))
		})
	}
}

func TestAuthenticateDistinguishesMissingToken(t *testing.T) {
	r := testRegistry(t, true)
	registerPlayers(t, r, 1)

	_, err := r.Authenticate("player:P01", "")
	assert.ErrorIs(t, err, ErrAuthTokenMissing)

	_, err = r.Authenticate("player:P01", "tok_P01_nope")
	assert.ErrorIs(t, err, ErrAuthTokenInvalid)
}

func TestConcurrentRegistrationsGetDistinctIDs(t *testing.T) {
	r := testRegistry(t, true)
	const n = 40

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := r.RegisterPlayer(context.Background(), &models.PlayerMeta{
				ProtocolVersion: "2.1.0",
				GameTypes:       []string{"even_odd"},
				ContactEndpoint: "http://p.test/mcp",
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[resp.PlayerID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.True(t, ids["P01"])
	assert.True(t, ids["P40"])
}

func TestRegistryPersistsParticipants(t *testing.T) {
	repo := repositories.NewMemoryLeagueRepository()
	r := NewRegistryService(RegistryConfig{LeagueID: "l1", GameType: "even_odd", RequiredProtocolVersion: "2.1.0"}, repo, discardLogger())
	registerPlayers(t, r, 2)
	registerReferee(t, r, "http://ref.test/mcp")

	stored, err := repo.ListParticipants(context.Background(), "l1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
