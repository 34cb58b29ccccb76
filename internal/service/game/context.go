package game

import (
	"math/rand/v2"
	"slices"
	"time"

	"imposter-room-be/internal/catalog"
)

// Catalog 是回合逻辑需要的内容目录能力
type Catalog interface {
	SampleLocations(rng *rand.Rand, n int) ([]catalog.Location, error)
	Questions(categories []string) []catalog.Question
	HasCategory(category string) bool
}

// GameContext 是一个房间内全部可变的游戏状态。
// 本身不加锁，由持有它的房间负责串行化访问。
type GameContext struct {
	RoomCode string
	LeaderID string
	Players  []*Player
	Rules    Rules
	Phase    Phase

	// 首回合开始时抽取，整局游戏保持不变
	LocationPool []catalog.Location

	Round   *Round
	History []HistoryEntry

	// 已开始的回合数，被中止的回合也计入
	roundsStarted int

	CreatedAt time.Time
}

func NewGameContext(code string, rules Rules, now time.Time) *GameContext {
	return &GameContext{
		RoomCode:  code,
		Players:   make([]*Player, 0, rules.MaxPlayers),
		Rules:     rules.Clone(),
		Phase:     PhaseLobby,
		History:   make([]HistoryEntry, 0),
		CreatedAt: now,
	}
}

func (gc *GameContext) GetPlayer(playerID string) *Player {
	for _, p := range gc.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (gc *GameContext) IsLeader(playerID string) bool {
	return playerID != "" && gc.LeaderID == playerID
}

func (gc *GameContext) ReadyCount() int {
	n := 0
	for _, p := range gc.Players {
		if p.Ready {
			n++
		}
	}
	return n
}

func (gc *GameContext) LastHistory() *HistoryEntry {
	if len(gc.History) == 0 {
		return nil
	}
	return &gc.History[len(gc.History)-1]
}

func (gc *GameContext) PoolLocation(locationID int) (catalog.Location, bool) {
	idx := slices.IndexFunc(gc.LocationPool, func(l catalog.Location) bool {
		return l.ID == locationID
	})
	if idx < 0 {
		return catalog.Location{}, false
	}
	return gc.LocationPool[idx], true
}

func (gc *GameContext) RoundsStarted() int {
	return gc.roundsStarted
}
