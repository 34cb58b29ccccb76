package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// NOTE: 暂时允许所有来源
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// 单次写入的超时时间
	WRITE_TIMEOUT = 10 * time.Second
	// 客户端消息的最大长度
	MAX_MESSAGE_SIZE = 4096

	// 每个连接每秒允许的客户端消息数与突发上限
	CLIENT_MESSAGE_RATE  = 5
	CLIENT_MESSAGE_BURST = 10
)

// heartbeatHandler 在收到 pong 时延长读超时
var heartbeatHandler = func(conn *websocket.Conn, timeout time.Duration) func(string) error {
	return func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	}
}

func newClientLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(CLIENT_MESSAGE_RATE), CLIENT_MESSAGE_BURST)
}
