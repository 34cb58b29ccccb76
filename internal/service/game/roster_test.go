package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPlayer(t *testing.T) {
	gc, players := newLobby(t, "  Ava  ", "Ben")

	assert.Equal(t, "Ava", players[0].Name)
	assert.Equal(t, players[0].ID, gc.LeaderID)
	assert.NotEqual(t, players[0].ID, players[1].ID)

	_, err := AddPlayer(gc, "   ", testNow)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = AddPlayer(gc, strings.Repeat("x", MaxNameLength+1), testNow)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddPlayer_Full(t *testing.T) {
	gc, _ := newLobby(t, "a", "b", "c")
	gc.Rules.MaxPlayers = 3

	_, err := AddPlayer(gc, "d", testNow)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Len(t, gc.Players, 3)
}

func TestAddPlayer_LateJoin(t *testing.T) {
	gc, _ := newLobby(t, "a", "b")
	gc.Rules.LocationPoolSize = 2

	_, err := StartRound(gc, testCatalog(t), testRNG(), testNow)
	require.NoError(t, err)

	_, err = AddPlayer(gc, "late", testNow)
	assert.ErrorIs(t, err, ErrInvalidPhase)

	require.NoError(t, AbortRound(gc))
	_, err = AddPlayer(gc, "late", testNow)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestToggleReady(t *testing.T) {
	gc, players := newLobby(t, "a", "b")

	ready, err := ToggleReady(gc, players[1].ID)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 1, gc.ReadyCount())

	ready, err = ToggleReady(gc, players[1].ID)
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = ToggleReady(gc, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRules(t *testing.T) {
	cat := testCatalog(t)
	gc, _ := newLobby(t, "a", "b", "c", "d")

	three := 3
	err := UpdateRules(gc, RulesPatch{MaxPlayers: &three}, cat)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 8, gc.Rules.MaxPlayers)

	unknown := []string{"nope"}
	err = UpdateRules(gc, RulesPatch{QuestionCategories: &unknown}, cat)
	assert.ErrorIs(t, err, ErrValidation)

	pool, repeat := 2, true
	categories := []string{"food", "work"}
	require.NoError(t, UpdateRules(gc, RulesPatch{
		LocationPoolSize:       &pool,
		AllowRepeatedQuestions: &repeat,
		QuestionCategories:     &categories,
	}, cat))
	assert.Equal(t, 2, gc.Rules.LocationPoolSize)
	assert.True(t, gc.Rules.AllowRepeatedQuestions)
	assert.Equal(t, []string{"food", "work"}, gc.Rules.QuestionCategories)
	assert.Equal(t, 120, gc.Rules.RoundTimeSeconds)

	_, err = StartRound(gc, cat, testRNG(), testNow)
	require.NoError(t, err)
	err = UpdateRules(gc, RulesPatch{LocationPoolSize: &pool}, cat)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestRemovePlayer(t *testing.T) {
	t.Run("leader leaves lobby", func(t *testing.T) {
		gc, players := newLobby(t, "a", "b", "c")

		res, err := RemovePlayer(gc, players[0].ID)
		require.NoError(t, err)
		assert.True(t, res.LeaderChanged)
		assert.Equal(t, players[1].ID, res.NewLeaderID)
		assert.Equal(t, players[1].ID, gc.LeaderID)
		assert.Len(t, gc.Players, 2)
	})

	t.Run("crew leaves mid round", func(t *testing.T) {
		gc, players := newLobby(t, "a", "b", "c")
		gc.Rules.LocationPoolSize = 2
		_, err := StartRound(gc, testCatalog(t), testRNG(), testNow)
		require.NoError(t, err)

		res, err := RemovePlayer(gc, players[2].ID)
		require.NoError(t, err)
		assert.True(t, res.RoundDiscarded)
		assert.False(t, res.LeaderChanged)
		assert.Nil(t, gc.Round)
		assert.Equal(t, PhaseAwaitingNextRound, gc.Phase)
		assert.Empty(t, gc.History)
	})

	t.Run("last player leaves", func(t *testing.T) {
		gc, players := newLobby(t, "a")

		res, err := RemovePlayer(gc, players[0].ID)
		require.NoError(t, err)
		assert.True(t, res.Empty)
		assert.Equal(t, PhaseEnded, gc.Phase)
		assert.Empty(t, gc.LeaderID)
	})

	t.Run("unknown player", func(t *testing.T) {
		gc, _ := newLobby(t, "a")
		_, err := RemovePlayer(gc, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
