package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"imposter-room-be/internal/service/game"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 令牌用途：房主令牌授权房主操作，玩家令牌证明请求者是哪名玩家
const (
	scopeHost   = "host"
	scopePlayer = "player"
)

// 令牌的声明：Subject 为玩家 ID
type roomClaims struct {
	RoomCode string `json:"room"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// HostTokenIssuer 签发与校验房主令牌和玩家令牌。
// 房主令牌只绑定房间号与房主 ID，房主变更后旧令牌自然失效。
type HostTokenIssuer struct {
	secret []byte
}

// NewHostTokenIssuer 在 secret 为空时使用进程内随机密钥，重启后旧令牌全部失效
func NewHostTokenIssuer(secret string) (*HostTokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("生成房主令牌密钥失败: %w", err)
		}
	}

	return &HostTokenIssuer{secret: key}, nil
}

func (h *HostTokenIssuer) issue(scope, roomCode, playerID string, now time.Time) (string, error) {
	claims := roomClaims{
		RoomCode: roomCode,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  playerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *HostTokenIssuer) Issue(roomCode, leaderID string, now time.Time) (string, error) {
	return h.issue(scopeHost, roomCode, leaderID, now)
}

// IssuePlayer 签发玩家令牌，加入房间时发给玩家本人
func (h *HostTokenIssuer) IssuePlayer(roomCode, playerID string, now time.Time) (string, error) {
	return h.issue(scopePlayer, roomCode, playerID, now)
}

func (h *HostTokenIssuer) verify(scope, token, roomCode string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: 缺少令牌", game.ErrUnauthorized)
	}

	var claims roomClaims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: 令牌无效", game.ErrUnauthorized)
	}

	if claims.Scope != scope {
		return "", fmt.Errorf("%w: 令牌用途不符", game.ErrUnauthorized)
	}
	if claims.RoomCode != roomCode || claims.Subject == "" {
		return "", fmt.Errorf("%w: 令牌不属于该房间", game.ErrUnauthorized)
	}

	return claims.Subject, nil
}

// Verify 校验房主令牌属于 roomCode，返回令牌中的房主 ID
func (h *HostTokenIssuer) Verify(token, roomCode string) (string, error) {
	return h.verify(scopeHost, token, roomCode)
}

// VerifyPlayer 校验玩家令牌属于 roomCode，返回令牌中的玩家 ID
func (h *HostTokenIssuer) VerifyPlayer(token, roomCode string) (string, error) {
	return h.verify(scopePlayer, token, roomCode)
}
