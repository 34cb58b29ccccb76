package dto

// 房间内的公开玩家信息，不包含任何回合秘密
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CrewWins     int    `json:"crew_wins"`
	ImposterWins int    `json:"imposter_wins"`
	Ready        bool   `json:"ready"`
	IsLeader     bool   `json:"is_leader"`
}

type PlayerRequest struct {
	PlayerID string `json:"player_id"`
}

// 只有持有本人玩家令牌才能领取房主令牌
type HostTokenRequest struct {
	PlayerToken string `json:"player_token"`
}

type HostTokenResponse struct {
	HostToken string `json:"host_token"`
	LeaderID  string `json:"leader_id"`
}

type LeaveRoomResponse struct {
	Code     string `json:"code"`
	LeaderID string `json:"leader_id,omitempty"`
	// 最后一名玩家离开后房间被关闭
	Closed  bool   `json:"closed"`
	Version uint64 `json:"version"`
}
