package game

import (
	"time"

	"imposter-room-be/internal/catalog"
)

type Phase string

// 房间阶段
// 1. 大厅（Lobby）：玩家加入、准备，房主可以修改规则
// 2. 回合中（InRound）：存在未结算的回合
// 3. 等待下一回合（AwaitingNextRound）：上一回合已结算或被中止
// 4. 已结束（Ended）：房主结束了整局游戏，房间不再接受任何操作
const (
	PhaseLobby             Phase = "Lobby"
	PhaseInRound           Phase = "InRound"
	PhaseAwaitingNextRound Phase = "AwaitingNextRound"
	PhaseEnded             Phase = "Ended"
)

type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CrewWins     int       `json:"crew_wins"`
	ImposterWins int       `json:"imposter_wins"`
	Ready        bool      `json:"ready"`
	JoinedAt     time.Time `json:"joined_at"`
}

type AskedQuestion struct {
	Question catalog.Question `json:"question"`
	// 抽题时轮到的玩家
	AskerID string `json:"asker_id"`
	// 本回合第几次抽题，从 1 开始
	Sequence int `json:"sequence"`
}

type Round struct {
	Number   int
	Location catalog.Location

	ImposterID string
	// 非卧底玩家 ID 到身份名的映射
	Roles map[string]string

	TurnOrder []string
	TurnIndex int

	AskedIDs        map[string]struct{}
	AskedTotal      int
	CurrentQuestion *AskedQuestion

	StartedAt  time.Time
	Resolution *Resolution
}

func (r *Round) IsResolved() bool {
	return r != nil && r.Resolution != nil
}

func (r *Round) CurrentTurnID() string {
	if r == nil || len(r.TurnOrder) == 0 {
		return ""
	}
	return r.TurnOrder[r.TurnIndex]
}

func (r *Round) Participates(playerID string) bool {
	if playerID == r.ImposterID {
		return true
	}
	_, ok := r.Roles[playerID]
	return ok
}

type HistoryEntry struct {
	RoundNumber  int        `json:"round_number"`
	LocationID   int        `json:"location_id"`
	LocationName string     `json:"location_name"`
	ImposterID   string     `json:"imposter_id"`
	Resolution   Resolution `json:"resolution"`
}

type Guess struct {
	PlayerID        string `json:"player_id"`
	AccusedPlayerID string `json:"accused_player_id,omitempty"`
	LocationID      *int   `json:"location_id,omitempty"`
}
