package websocket

import (
	"encoding/json"
	"time"

	"imposter-room-be/internal/api/http/httperr"
	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// RoomChannel 是房间的推送通道。
// 建立连接后先收到完整快照，之后每次房间状态提交都会收到一条事件。
// 客户端可以发送 ping（回复 heartbeat_ack）和 sync（回复完整快照）。
func RoomChannel(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")
		playerID := ctx.URLParam("player_id")

		// 先订阅再升级，房间或玩家不存在时直接返回普通的错误响应
		sub, unsubscribe, err := appState.RoomSvc.Subscribe(code, playerID)
		if err != nil {
			httperr.Write(ctx, err)
			return
		}
		defer unsubscribe()

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			return
		}

		defer conn.Close()

		clientIP := ctx.RemoteAddr()
		heartbeatInterval := appState.Cfg.HeartbeatInterval
		heartbeatTimeout := appState.Cfg.HeartbeatTimeout

		conn.SetReadLimit(MAX_MESSAGE_SIZE)
		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		conn.SetPongHandler(heartbeatHandler(conn, heartbeatTimeout))

		subscribers, _ := appState.RoomSvc.SubscriberCount(code)
		zap.L().Info(
			"推送通道已建立",
			zap.String("client_ip", clientIP),
			zap.String("room_code", code),
			zap.String("player_id", playerID),
			zap.Int("subscribers", subscribers),
		)

		// 读协程产生的回复交给写协程发送，保证同一时间只有一个写者
		replyCh := make(chan dto.Event, 8)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		// 写入协程
		go func() {
			ticker := time.NewTicker(heartbeatInterval)
			defer ticker.Stop()

			// 写协程退出时关闭连接，让读协程随之退出
			defer conn.Close()

			write := func(ev dto.Event) bool {
				conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
				if err := conn.WriteJSON(ev); err != nil {
					zap.L().Warn(
						"发送消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
					return false
				}
				return true
			}

			for {
				select {
				case <-writeDoneCh:
					return

				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Warn(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

				case ev, ok := <-sub.Events():
					// 订阅被踢出或房间已关闭
					if !ok {
						zap.L().Info(
							"推送订阅已结束，关闭连接",
							zap.String("client_ip", clientIP),
							zap.String("room_code", code),
						)
						conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
						conn.WriteMessage(
							websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription ended"),
						)
						return
					}

					if !write(ev) {
						return
					}

				case ev := <-replyCh:
					if !write(ev) {
						return
					}
				}
			}
		}()

		limiter := newClientLimiter()

		// 读取协程（主协程）
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Warn(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			// 任何客户端消息都视为存活
			conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))

			if !limiter.Allow() {
				zap.L().Debug("客户端消息过于频繁，已忽略", zap.String("client_ip", clientIP))
				continue
			}

			var clientMsg dto.ClientMessage
			if err := json.Unmarshal(msg, &clientMsg); err != nil {
				zap.L().Debug(
					"无法解析客户端消息",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				continue
			}

			var reply dto.Event
			switch clientMsg.Type {
			case dto.CLIENT_PING:
				version, err := appState.RoomSvc.Version(code)
				if err != nil {
					continue
				}
				reply = dto.Event{Type: dto.EVENT_HEARTBEAT_ACK, Version: version}

			case dto.CLIENT_SYNC:
				snapshot, err := appState.RoomSvc.Snapshot(code)
				if err != nil {
					continue
				}
				reply = snapshot

			default:
				continue
			}

			select {
			case replyCh <- reply:
			default:
				zap.L().Debug("回复队列已满，丢弃回复", zap.String("client_ip", clientIP))
			}
		}

		zap.L().Info(
			"推送通道已断开",
			zap.String("client_ip", clientIP),
			zap.String("room_code", code),
			zap.String("player_id", playerID),
		)
	}
}
