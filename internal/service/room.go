package service

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/service/fanout"
	"imposter-room-be/internal/service/game"

	"go.uber.org/zap"
)

// RoomService 是进程内的房间注册表。
// 注册表的锁只保护房间号到房间的映射，房间内部的修改由各自的房间锁串行化。
type RoomService struct {
	catalog game.Catalog
	tokens  *HostTokenIssuer

	now      func() time.Time
	genCode  func() string
	newRand  func() *rand.Rand
	genSubID func() string

	idleTimeout   time.Duration
	sweepInterval time.Duration
	pushBuffer    int

	mu    sync.RWMutex
	rooms map[string]*room

	cleanUpDone chan struct{}
	closeOnce   sync.Once
}

type Option func(*RoomService)

func WithClock(now func() time.Time) Option {
	return func(rs *RoomService) { rs.now = now }
}

func WithCodeGenerator(gen func() string) Option {
	return func(rs *RoomService) { rs.genCode = gen }
}

// WithRandSource 设置每个房间的随机数来源，测试中用于固定随机序列
func WithRandSource(newRand func() *rand.Rand) Option {
	return func(rs *RoomService) { rs.newRand = newRand }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(rs *RoomService) { rs.idleTimeout = d }
}

// WithSweepInterval 为 0 时不启动后台清理，需要手动调用 Sweep
func WithSweepInterval(d time.Duration) Option {
	return func(rs *RoomService) { rs.sweepInterval = d }
}

func WithPushBuffer(n int) Option {
	return func(rs *RoomService) { rs.pushBuffer = n }
}

func WithHostTokens(issuer *HostTokenIssuer) Option {
	return func(rs *RoomService) { rs.tokens = issuer }
}

func NewRoomService(cat game.Catalog, opts ...Option) (*RoomService, error) {
	rs := &RoomService{
		catalog:  cat,
		now:      time.Now,
		genCode:  randomRoomCode,
		genSubID: game.GenID,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		idleTimeout:   30 * time.Minute,
		sweepInterval: time.Minute,
		pushBuffer:    32,
		rooms:         make(map[string]*room),
		cleanUpDone:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(rs)
	}

	if rs.tokens == nil {
		tokens, err := NewHostTokenIssuer("")
		if err != nil {
			return nil, err
		}
		rs.tokens = tokens
	}

	// 启动一个 goroutine 定期清理过期的房间
	if rs.sweepInterval > 0 {
		go rs.startCleanupLoop()
	}

	return rs, nil
}

func (rs *RoomService) startCleanupLoop() {
	ticker := time.NewTicker(rs.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.cleanUpDone:
			return

		case <-ticker.C:
			if n := rs.Sweep(); n > 0 {
				zap.S().Infof("清理了 %d 个失效房间", n)
			}
		}
	}
}

// Sweep 移除所有失效的房间，返回移除的数量
func (rs *RoomService) Sweep() int {
	now := rs.now()

	rs.mu.RLock()
	stale := make([]*room, 0)
	for _, r := range rs.rooms {
		if !isRoomValid(r, now, rs.idleTimeout) {
			stale = append(stale, r)
		}
	}
	rs.mu.RUnlock()

	for _, r := range stale {
		zap.S().Infof("房间 %s 状态失效，开始清理", r.code)
		rs.removeRoom(r)
	}

	return len(stale)
}

// Close 停止后台清理并关闭所有房间的推送
func (rs *RoomService) Close() {
	rs.closeOnce.Do(func() {
		close(rs.cleanUpDone)

		rs.mu.Lock()
		rooms := make([]*room, 0, len(rs.rooms))
		for _, r := range rs.rooms {
			rooms = append(rooms, r)
		}
		rs.mu.Unlock()

		for _, r := range rooms {
			rs.removeRoom(r)
		}
	})
}

func (rs *RoomService) RoomCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return len(rs.rooms)
}

func (rs *RoomService) CreateRoom(req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	rules := game.DefaultRules()
	if req.Rules != nil {
		rules = rules.Apply(*req.Rules)
	}
	if err := rules.Validate(rs.catalog); err != nil {
		return dto.CreateRoomResponse{}, err
	}

	now := rs.now()

	rs.mu.Lock()

	code := ""
	for range maxCodeAttempts {
		candidate := rs.genCode()
		if _, taken := rs.rooms[candidate]; !taken {
			code = candidate
			break
		}
	}
	if code == "" {
		rs.mu.Unlock()
		return dto.CreateRoomResponse{}, fmt.Errorf("%w: 无法分配空闲的房间号", game.ErrConflict)
	}

	gc := game.NewGameContext(code, rules, now)
	host, err := game.AddPlayer(gc, req.HostName, now)
	if err != nil {
		rs.mu.Unlock()
		return dto.CreateRoomResponse{}, err
	}

	token, err := rs.tokens.Issue(code, host.ID, now)
	if err != nil {
		rs.mu.Unlock()
		return dto.CreateRoomResponse{}, fmt.Errorf("签发房主令牌失败: %w", err)
	}
	playerToken, err := rs.tokens.IssuePlayer(code, host.ID, now)
	if err != nil {
		rs.mu.Unlock()
		return dto.CreateRoomResponse{}, fmt.Errorf("签发玩家令牌失败: %w", err)
	}

	r := &room{
		code:       code,
		gc:         gc,
		hub:        fanout.NewHub(code, rs.pushBuffer),
		rng:        rs.newRand(),
		lastActive: now,
	}
	rs.rooms[code] = r

	rs.mu.Unlock()

	zap.L().Info(
		"房间已创建",
		zap.String("room_code", code),
		zap.String("player_id", host.ID),
		zap.String("host_name", host.Name),
	)

	return dto.CreateRoomResponse{
		Code:        code,
		HostToken:   token,
		LeaderID:    host.ID,
		PlayerID:    host.ID,
		PlayerToken: playerToken,
		Rules:       gc.Rules.Clone(),
	}, nil
}

// getRoom 查找房间，房间号不区分大小写
func (rs *RoomService) getRoom(code string) (*room, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[normalized]
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return r, nil
}

// removeRoom 只有当注册表里仍是同一个房间时才删除
func (rs *RoomService) removeRoom(r *room) {
	rs.mu.Lock()
	if cur, ok := rs.rooms[r.code]; ok && cur == r {
		delete(rs.rooms, r.code)
	}
	rs.mu.Unlock()

	r.mu.Lock()
	r.closed = true
	r.hub.Close()
	r.mu.Unlock()

	zap.L().Info("房间已移除", zap.String("room_code", r.code))
}

func (rs *RoomService) JoinRoom(code string, req dto.JoinRoomRequest) (dto.JoinRoomResponse, error) {
	var resp dto.JoinRoomResponse

	err := rs.mutate(code, func(r *room, now time.Time) error {
		player, err := game.AddPlayer(r.gc, req.PlayerName, now)
		if err != nil {
			return err
		}

		playerToken, err := rs.tokens.IssuePlayer(r.code, player.ID, now)
		if err != nil {
			// 未提交的加入需要撤销
			_, _ = game.RemovePlayer(r.gc, player.ID)
			return fmt.Errorf("签发玩家令牌失败: %w", err)
		}

		r.commit(dto.EVENT_LOBBY, now)
		resp = dto.JoinRoomResponse{PlayerID: player.ID, PlayerToken: playerToken, Code: r.code}

		zap.L().Info(
			"玩家加入房间",
			zap.String("room_code", r.code),
			zap.String("player_id", player.ID),
			zap.String("player_name", player.Name),
			zap.Uint64("version", r.version),
		)

		return nil
	})

	return resp, err
}
