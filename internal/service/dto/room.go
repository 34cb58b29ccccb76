package dto

import (
	"time"

	"imposter-room-be/internal/service/game"
)

// 房主请求中令牌放在请求体里，也可以通过 X-Host-Token 请求头传递
type CreateRoomRequest struct {
	HostName string `json:"host_name"`
	// 可空，未指定的字段使用默认值
	Rules *game.RulesPatch `json:"rules,omitempty"`
}

type CreateRoomResponse struct {
	Code      string `json:"code"`
	HostToken string `json:"host_token"`
	LeaderID  string `json:"leader_id"`
	PlayerID  string `json:"player_id"`
	// 玩家令牌用于读取本人的秘密身份
	PlayerToken string     `json:"player_token"`
	Rules       game.Rules `json:"rules"`
}

type JoinRoomRequest struct {
	PlayerName string `json:"player_name"`
}

type JoinRoomResponse struct {
	PlayerID    string `json:"player_id"`
	PlayerToken string `json:"player_token"`
	Code        string `json:"code"`
}

type UpdateRulesRequest struct {
	HostToken string          `json:"host_token"`
	Rules     game.RulesPatch `json:"rules"`
}

type HostRequest struct {
	HostToken string `json:"host_token"`
}

const (
	ABORT_SCOPE_ROUND = "round"
	ABORT_SCOPE_GAME  = "game"
)

type AbortRequest struct {
	HostToken string `json:"host_token"`
	Scope     string `json:"scope"`
}

// LobbySnapshot 是大厅的完整快照，拉取和推送使用同一份结构
type LobbySnapshot struct {
	Code        string     `json:"code"`
	Phase       game.Phase `json:"phase"`
	LeaderID    string     `json:"leader_id"`
	Players     []Player   `json:"players"`
	Rules       game.Rules `json:"rules"`
	PlayerCount int        `json:"player_count"`
	MaxPlayers  int        `json:"max_players"`
	ReadyCount  int        `json:"ready_count"`

	// 最近一次开始的回合编号，尚未开始过回合时为 0
	RoundNumber int                 `json:"round_number"`
	LastRound   *game.HistoryEntry  `json:"last_round"`
	History     []game.HistoryEntry `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	Version   uint64    `json:"version"`
}
