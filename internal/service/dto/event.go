package dto

// 服务器推送的事件类型
const (
	EVENT_SNAPSHOT      = "snapshot"
	EVENT_LOBBY         = "lobby"
	EVENT_ROUND         = "round"
	EVENT_HEARTBEAT_ACK = "heartbeat_ack"
)

// Event 是推送通道上的唯一消息格式。
// snapshot 同时携带大厅和回合；lobby 只携带大厅；round 只携带回合（可能为 null）。
type Event struct {
	Type    string         `json:"type"`
	Version uint64         `json:"version"`
	Lobby   *LobbySnapshot `json:"lobby,omitempty"`
	Round   *RoundState    `json:"round,omitempty"`
}

// 客户端发送的消息类型
const (
	CLIENT_PING = "ping"
	CLIENT_SYNC = "sync"
)

type ClientMessage struct {
	Type string `json:"type"`
}

// 所有失败的 HTTP 响应都使用该结构
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
