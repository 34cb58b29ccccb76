package dto

import (
	"time"

	"imposter-room-be/internal/catalog"
	"imposter-room-be/internal/service/game"
)

// RoundState 是回合的公开视图。
// 结算之前既不包含卧底身份，也不包含任何玩家的身份名。
type RoundState struct {
	RoundNumber         int                 `json:"round_number"`
	StartedAt           time.Time           `json:"started_at"`
	DeadlineAt          time.Time           `json:"deadline_at"`
	TurnOrder           []string            `json:"turn_order"`
	CurrentTurnPlayerID string              `json:"current_turn_player_id"`
	CurrentQuestion     *game.AskedQuestion `json:"current_question"`
	AskedTotal          int                 `json:"asked_total"`
	Resolved            bool                `json:"resolved"`
	Resolution          *game.Resolution    `json:"resolution"`
	Version             uint64              `json:"version"`
}

// 当前没有回合时 Round 为 null
type RoundResponse struct {
	Round   *RoundState `json:"round"`
	Version uint64      `json:"version"`
}

type DrawQuestionRequest struct {
	PlayerID  string `json:"player_id,omitempty"`
	HostToken string `json:"host_token,omitempty"`
}

type DrawQuestionResponse struct {
	Question         catalog.Question `json:"question"`
	AskerID          string           `json:"asker_id"`
	NextTurnPlayerID string           `json:"next_turn_player_id"`
	AskedTotal       int              `json:"asked_total"`
	Version          uint64           `json:"version"`
}

type GuessRequest struct {
	PlayerID        string `json:"player_id"`
	AccusedPlayerID string `json:"accused_player_id,omitempty"`
	LocationID      *int   `json:"location_id,omitempty"`
}

func (r GuessRequest) ToGuess() game.Guess {
	return game.Guess{
		PlayerID:        r.PlayerID,
		AccusedPlayerID: r.AccusedPlayerID,
		LocationID:      r.LocationID,
	}
}

type GuessResponse struct {
	Resolution game.Resolution `json:"resolution"`
	Version    uint64          `json:"version"`
}

type LocationSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type LocationsResponse struct {
	Locations []LocationSummary `json:"locations"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}
