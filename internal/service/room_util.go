package service

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"imposter-room-be/internal/service/game"
)

const (
	RoomCodeLength = 4
	// 去掉了容易混淆的 I、O、0、1
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 64
)

func randomRoomCode() string {
	var sb strings.Builder
	sb.Grow(RoomCodeLength)
	for range RoomCodeLength {
		sb.WriteByte(roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode 去掉首尾空白并转为大写，房间号不区分大小写
func NormalizeCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != RoomCodeLength {
		return "", fmt.Errorf("%w: 房间号 %q 格式错误", game.ErrValidation, code)
	}

	for _, c := range normalized {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", fmt.Errorf("%w: 房间号 %q 格式错误", game.ErrValidation, code)
		}
	}

	return normalized, nil
}

// isRoomValid 判断房间是否应该继续保留。
// 没有玩家、已结束、或者无人连接且长时间无操作的房间都会被清理。
func isRoomValid(r *room, now time.Time, idleTimeout time.Duration) bool {
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || len(r.gc.Players) == 0 || r.gc.Phase == game.PhaseEnded {
		return false
	}

	if r.hub.Count() == 0 && now.Sub(r.lastActive) > idleTimeout {
		return false
	}

	return true
}
