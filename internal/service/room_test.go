package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imposter-room-be/internal/catalog"
	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/service/game"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	roles := func(prefix string) []string {
		out := make([]string, 0, catalog.RolesPerLocation)
		for i := range catalog.RolesPerLocation {
			out = append(out, fmt.Sprintf("%s-%d", prefix, i))
		}
		return out
	}

	c, err := catalog.New(
		[]catalog.Location{
			{ID: 1, Name: "Bank", Roles: roles("bank")},
			{ID: 2, Name: "Beach", Roles: roles("beach")},
			{ID: 3, Name: "School", Roles: roles("school")},
		},
		[]catalog.Question{
			{ID: "q1", Prompt: "one", Categories: []string{"warmup", "people"}},
			{ID: "q2", Prompt: "two", Categories: []string{"food", "opinion"}},
		},
	)
	require.NoError(t, err)

	return c
}

func newTestService(t *testing.T, opts ...Option) *RoomService {
	t.Helper()

	opts = append([]Option{WithSweepInterval(0)}, opts...)
	rs, err := NewRoomService(testCatalog(t), opts...)
	require.NoError(t, err)
	t.Cleanup(rs.Close)

	return rs
}

func smallPool() *game.RulesPatch {
	pool := 3
	return &game.RulesPatch{LocationPoolSize: &pool}
}

// 通过各自的秘密视图找出卧底和任意一名船员
func findRoles(t *testing.T, rs *RoomService, code string, playerIDs ...string) (imposter, crew string) {
	t.Helper()

	for _, id := range playerIDs {
		token, err := rs.tokens.IssuePlayer(code, id, time.Now())
		require.NoError(t, err)
		view, err := rs.Assignment(code, token)
		require.NoError(t, err)
		if view.IsImposter {
			imposter = id
		} else if crew == "" {
			crew = id
		}
	}
	require.NotEmpty(t, imposter)
	require.NotEmpty(t, crew)

	return imposter, crew
}

func TestCreateRoom_Codes(t *testing.T) {
	rs := newTestService(t)

	seen := map[string]bool{}
	for i := range 50 {
		resp, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: fmt.Sprintf("host-%d", i)})
		require.NoError(t, err)

		assert.Len(t, resp.Code, RoomCodeLength)
		for _, c := range resp.Code {
			assert.True(t, strings.ContainsRune(roomCodeAlphabet, c))
		}
		assert.False(t, seen[resp.Code], "房间号 %s 重复", resp.Code)
		seen[resp.Code] = true

		assert.Equal(t, resp.LeaderID, resp.PlayerID)
		assert.NotEmpty(t, resp.HostToken)
		assert.Equal(t, game.DefaultRules(), resp.Rules)
	}

	assert.Equal(t, 50, rs.RoomCount())
}

func TestCreateRoom_CollisionAndValidation(t *testing.T) {
	rs := newTestService(t, WithCodeGenerator(func() string { return "ABCD" }))

	resp, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava"})
	require.NoError(t, err)
	assert.Equal(t, "ABCD", resp.Code)

	_, err = rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ben"})
	assert.ErrorIs(t, err, game.ErrConflict)

	nine := 9
	_, err = rs.CreateRoom(dto.CreateRoomRequest{HostName: "Cy", Rules: &game.RulesPatch{MaxPlayers: &nine}})
	assert.ErrorIs(t, err, game.ErrValidation)

	_, err = rs.Lobby("abcd")
	assert.NoError(t, err)
	_, err = rs.Lobby("ZZZZ")
	assert.ErrorIs(t, err, game.ErrNotFound)
	_, err = rs.Lobby("AB")
	assert.ErrorIs(t, err, game.ErrValidation)
}

func TestJoinRoom(t *testing.T) {
	rs := newTestService(t)

	three := 3
	created, err := rs.CreateRoom(dto.CreateRoomRequest{
		HostName: "Ava",
		Rules:    &game.RulesPatch{MaxPlayers: &three, LocationPoolSize: smallPool().LocationPoolSize},
	})
	require.NoError(t, err)

	for _, name := range []string{"Ben", "Cy"} {
		joined, err := rs.JoinRoom(strings.ToLower(created.Code), dto.JoinRoomRequest{PlayerName: name})
		require.NoError(t, err)
		assert.Equal(t, created.Code, joined.Code)
	}

	_, err = rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Dee"})
	assert.ErrorIs(t, err, game.ErrConflict)

	lobby, err := rs.Lobby(created.Code)
	require.NoError(t, err)
	assert.Equal(t, 3, lobby.PlayerCount)
	assert.Equal(t, uint64(2), lobby.Version)

	_, err = rs.LeaveRoom(created.Code, lobby.Players[2].ID)
	require.NoError(t, err)

	_, err = rs.StartRound(created.Code, created.HostToken)
	require.NoError(t, err)

	_, err = rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Late"})
	assert.ErrorIs(t, err, game.ErrInvalidPhase)
}

func TestRoundFlow(t *testing.T) {
	rs := newTestService(t, WithCodeGenerator(func() string { return "ABCD" }))

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava", Rules: smallPool()})
	require.NoError(t, err)
	joined, err := rs.JoinRoom("ABCD", dto.JoinRoomRequest{PlayerName: "Ben"})
	require.NoError(t, err)

	lobby, err := rs.Lobby("ABCD")
	require.NoError(t, err)
	assert.Equal(t, 2, lobby.PlayerCount)

	_, err = rs.StartRound("ABCD", "not-a-token")
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	round, err := rs.StartRound("ABCD", created.HostToken)
	require.NoError(t, err)
	assert.Equal(t, 1, round.RoundNumber)
	assert.Len(t, round.TurnOrder, 2)
	assert.Nil(t, round.Resolution)
	assert.Equal(t, round.StartedAt.Add(120*time.Second), round.DeadlineAt)

	draw, err := rs.DrawQuestion("ABCD", dto.DrawQuestionRequest{PlayerID: joined.PlayerID})
	require.NoError(t, err)
	assert.Equal(t, 1, draw.AskedTotal)
	assert.Equal(t, round.TurnOrder[1], draw.NextTurnPlayerID)

	forced, err := rs.DrawQuestion("ABCD", dto.DrawQuestionRequest{HostToken: created.HostToken})
	require.NoError(t, err)
	assert.Equal(t, 2, forced.AskedTotal)

	_, err = rs.DrawQuestion("ABCD", dto.DrawQuestionRequest{PlayerID: joined.PlayerID})
	assert.ErrorIs(t, err, game.ErrExhausted)

	imposter, crew := findRoles(t, rs, "ABCD", created.PlayerID, joined.PlayerID)

	guess, err := rs.SubmitGuess("ABCD", dto.GuessRequest{PlayerID: crew, AccusedPlayerID: imposter})
	require.NoError(t, err)
	assert.Equal(t, game.WinnerCrew, guess.Resolution.Winner())
	assert.Equal(t, game.CrewIdentifiedImposter{Accuser: crew, Impostor: imposter}, guess.Resolution.Outcome)

	current, err := rs.Round("ABCD")
	require.NoError(t, err)
	require.NotNil(t, current.Round)
	assert.True(t, current.Round.Resolved)
	assert.Equal(t, guess.Version, current.Version)

	lobby, err = rs.Lobby("ABCD")
	require.NoError(t, err)
	assert.Equal(t, game.PhaseAwaitingNextRound, lobby.Phase)
	require.NotNil(t, lobby.LastRound)
	assert.Equal(t, 1, lobby.LastRound.RoundNumber)
	for _, p := range lobby.Players {
		if p.ID == crew {
			assert.Equal(t, 1, p.CrewWins)
		}
	}

	locations, err := rs.Locations("ABCD")
	require.NoError(t, err)
	assert.Len(t, locations.Locations, 3)
}

func TestSubmitGuess_ConcurrentFirstWriterWins(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "a", Rules: smallPool()})
	require.NoError(t, err)
	ids := []string{created.PlayerID}
	for _, name := range []string{"b", "c", "d"} {
		joined, err := rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: name})
		require.NoError(t, err)
		ids = append(ids, joined.PlayerID)
	}

	_, err = rs.StartRound(created.Code, created.HostToken)
	require.NoError(t, err)

	imposter, _ := findRoles(t, rs, created.Code, ids...)
	locations, err := rs.Locations(created.Code)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var req dto.GuessRequest
			if i%2 == 0 {
				loc := locations.Locations[i%len(locations.Locations)].ID
				req = dto.GuessRequest{PlayerID: imposter, LocationID: &loc}
			} else {
				for _, id := range ids {
					if id != imposter {
						req = dto.GuessRequest{PlayerID: id, AccusedPlayerID: imposter}
						break
					}
				}
			}

			_, err := rs.SubmitGuess(created.Code, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, game.ErrAlreadyResolved):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 39, conflicts)

	lobby, err := rs.Lobby(created.Code)
	require.NoError(t, err)
	assert.Len(t, lobby.History, 1)
}

func TestHostTransfer(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava", Rules: smallPool()})
	require.NoError(t, err)
	ben, err := rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Ben"})
	require.NoError(t, err)
	_, err = rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Cy"})
	require.NoError(t, err)

	_, err = rs.IssueHostToken(created.Code, ben.PlayerToken)
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	// 公开的玩家 ID 和房主令牌都不能代替玩家令牌
	_, err = rs.IssueHostToken(created.Code, ben.PlayerID)
	assert.ErrorIs(t, err, game.ErrUnauthorized)
	_, err = rs.IssueHostToken(created.Code, created.HostToken)
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	left, err := rs.LeaveRoom(created.Code, created.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, ben.PlayerID, left.LeaderID)
	assert.False(t, left.Closed)

	_, err = rs.StartRound(created.Code, created.HostToken)
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	token, err := rs.IssueHostToken(created.Code, ben.PlayerToken)
	require.NoError(t, err)
	_, err = rs.StartRound(created.Code, token.HostToken)
	require.NoError(t, err)
}

func TestAssignmentRequiresPlayerToken(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava", Rules: smallPool()})
	require.NoError(t, err)
	ben, err := rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Ben"})
	require.NoError(t, err)
	other, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Zed"})
	require.NoError(t, err)

	_, err = rs.StartRound(created.Code, created.HostToken)
	require.NoError(t, err)

	hostView, err := rs.Assignment(created.Code, created.PlayerToken)
	require.NoError(t, err)
	benView, err := rs.Assignment(created.Code, ben.PlayerToken)
	require.NoError(t, err)

	// 两人中恰好一名卧底
	assert.NotEqual(t, hostView.IsImposter, benView.IsImposter)

	for name, token := range map[string]string{
		"empty":        "",
		"player id":    ben.PlayerID,
		"host token":   created.HostToken,
		"foreign room": other.PlayerToken,
	} {
		_, err := rs.Assignment(created.Code, token)
		assert.ErrorIs(t, err, game.ErrUnauthorized, name)
	}

	// 离开后令牌不再能读取身份
	_, err = rs.LeaveRoom(created.Code, ben.PlayerID)
	require.NoError(t, err)
	_, err = rs.Assignment(created.Code, ben.PlayerToken)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestLastPlayerLeavingClosesRoom(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava"})
	require.NoError(t, err)

	left, err := rs.LeaveRoom(created.Code, created.PlayerID)
	require.NoError(t, err)
	assert.True(t, left.Closed)

	assert.Zero(t, rs.RoomCount())
	_, err = rs.Lobby(created.Code)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestAbort(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava", Rules: smallPool()})
	require.NoError(t, err)
	_, err = rs.JoinRoom(created.Code, dto.JoinRoomRequest{PlayerName: "Ben"})
	require.NoError(t, err)

	_, err = rs.Abort(created.Code, created.HostToken, "everything")
	assert.ErrorIs(t, err, game.ErrValidation)

	_, err = rs.StartRound(created.Code, created.HostToken)
	require.NoError(t, err)

	lobby, err := rs.Abort(created.Code, created.HostToken, dto.ABORT_SCOPE_ROUND)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseAwaitingNextRound, lobby.Phase)
	assert.Empty(t, lobby.History)

	round, err := rs.Round(created.Code)
	require.NoError(t, err)
	assert.Nil(t, round.Round)

	next, err := rs.StartRound(created.Code, created.HostToken)
	require.NoError(t, err)
	assert.Equal(t, 2, next.RoundNumber)

	lobby, err = rs.Abort(created.Code, created.HostToken, dto.ABORT_SCOPE_GAME)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseEnded, lobby.Phase)

	_, err = rs.Lobby(created.Code)
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestUpdateRules(t *testing.T) {
	rs := newTestService(t)

	created, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "Ava"})
	require.NoError(t, err)

	five := 5
	lobby, err := rs.UpdateRules(created.Code, created.HostToken, game.RulesPatch{MaxPlayers: &five})
	require.NoError(t, err)
	assert.Equal(t, 5, lobby.Rules.MaxPlayers)
	assert.Equal(t, 5, lobby.MaxPlayers)

	_, err = rs.UpdateRules(created.Code, "", game.RulesPatch{MaxPlayers: &five})
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	ready, err := rs.ToggleReady(created.Code, created.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1, ready.ReadyCount)
	assert.Greater(t, ready.Version, lobby.Version)
}

func TestSweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rs := newTestService(t,
		WithClock(func() time.Time { return now }),
		WithIdleTimeout(10*time.Minute),
	)

	idle, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "idle"})
	require.NoError(t, err)
	watched, err := rs.CreateRoom(dto.CreateRoomRequest{HostName: "watched"})
	require.NoError(t, err)

	_, unsubscribe, err := rs.Subscribe(watched.Code, watched.PlayerID)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Zero(t, rs.Sweep())

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, rs.Sweep())

	_, err = rs.Lobby(idle.Code)
	assert.ErrorIs(t, err, game.ErrNotFound)
	_, err = rs.Lobby(watched.Code)
	assert.NoError(t, err)

	unsubscribe()
	assert.Equal(t, 1, rs.Sweep())
	assert.Zero(t, rs.RoomCount())
}
