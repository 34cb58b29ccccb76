package game

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imposter-room-be/internal/catalog"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRoles(prefix string) []string {
	out := make([]string, 0, catalog.RolesPerLocation)
	for i := range catalog.RolesPerLocation {
		out = append(out, fmt.Sprintf("%s-%d", prefix, i))
	}
	return out
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.New(
		[]catalog.Location{
			{ID: 1, Name: "Bank", Roles: testRoles("bank")},
			{ID: 2, Name: "Beach", Roles: testRoles("beach")},
			{ID: 3, Name: "School", Roles: testRoles("school")},
			{ID: 4, Name: "Hospital", Roles: testRoles("hospital")},
		},
		[]catalog.Question{
			{ID: "q1", Prompt: "one", Categories: []string{"warmup", "people"}},
			{ID: "q2", Prompt: "two", Categories: []string{"food", "opinion"}},
			{ID: "q3", Prompt: "three", Categories: []string{"people", "work"}},
		},
	)
	require.NoError(t, err)

	return c
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

// newLobby 创建一个包含给定玩家的大厅，第一个玩家为房主
func newLobby(t *testing.T, names ...string) (*GameContext, []*Player) {
	t.Helper()

	gc := NewGameContext("ABCD", DefaultRules(), testNow)
	players := make([]*Player, 0, len(names))
	for _, name := range names {
		p, err := AddPlayer(gc, name, testNow)
		require.NoError(t, err)
		players = append(players, p)
	}

	return gc, players
}

// forceImposter 重新分配本回合身份，使 imposterID 成为卧底
func forceImposter(gc *GameContext, imposterID string) {
	round := gc.Round
	round.ImposterID = imposterID
	round.Roles = make(map[string]string, len(gc.Players)-1)

	next := 0
	for _, p := range gc.Players {
		if p.ID == imposterID {
			continue
		}
		round.Roles[p.ID] = round.Location.Roles[next]
		next++
	}
}

// crewMember 返回本回合任意一名船员
func crewMember(gc *GameContext) string {
	for _, p := range gc.Players {
		if p.ID != gc.Round.ImposterID {
			return p.ID
		}
	}
	return ""
}

func otherLocation(gc *GameContext) int {
	for _, loc := range gc.LocationPool {
		if loc.ID != gc.Round.Location.ID {
			return loc.ID
		}
	}
	return -1
}
