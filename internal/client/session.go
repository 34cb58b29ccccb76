package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"imposter-room-be/internal/service/dto"
	"imposter-room-be/internal/service/game"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnState 是推送通道的连接状态
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Status 是对外可见的连接状态。Attempt 只在 Backoff 状态下有意义。
type Status struct {
	State   ConnState
	Attempt int
	// 自动重连次数耗尽后的持久提示，调用 Reconnect 后清除
	Notice string
}

const (
	DEFAULT_INITIAL_BACKOFF = 500 * time.Millisecond
	DEFAULT_MAX_BACKOFF     = 10 * time.Second
	DEFAULT_MAX_ATTEMPTS    = 8
	DEFAULT_POLL_INTERVAL   = 2 * time.Second
	DEFAULT_PING_INTERVAL   = 15 * time.Second
	DEFAULT_READ_TIMEOUT    = 45 * time.Second
	DEFAULT_WRITE_TIMEOUT   = 10 * time.Second
)

const giveUpNotice = "与服务器的连接已断开，请手动重连"

type options struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxAttempts    int
	pollInterval   time.Duration
	pingInterval   time.Duration
	readTimeout    time.Duration
	httpClient     *http.Client
	dialer         *websocket.Dialer
	logger         *zap.Logger
	onStatus       func(Status)
	playerToken    string
}

type Option func(*options)

func WithBackoff(initial, ceiling time.Duration, attempts int) Option {
	return func(o *options) {
		o.initialBackoff = initial
		o.maxBackoff = ceiling
		o.maxAttempts = attempts
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithHeartbeat 设置客户端 ping 的间隔以及读超时
func WithHeartbeat(ping, readTimeout time.Duration) Option {
	return func(o *options) {
		o.pingInterval = ping
		o.readTimeout = readTimeout
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPlayerToken 设置加入房间时拿到的玩家令牌，领取主持人令牌和查看身份都需要它
func WithPlayerToken(token string) Option {
	return func(o *options) { o.playerToken = token }
}

// WithStatusHook 在每次连接状态变化时被调用，调用时不持有会话锁
func WithStatusHook(fn func(Status)) Option {
	return func(o *options) { o.onStatus = fn }
}

// Session 是单个设备的房间会话。
// 它维护大厅和回合的本地镜像，推送通道可用时以推送为准，
// 不可用时按固定间隔轮询，并以指数退避重连。
type Session struct {
	api      *API
	code     string
	playerID string
	opts     options
	log      *zap.Logger

	mu           sync.Mutex
	hostToken    string
	lobby        *dto.LobbySnapshot
	lobbyVersion uint64
	round        *dto.RoundState
	roundVersion uint64
	hasRound     bool
	pending      int
	status       Status

	updates     chan struct{}
	reconnectCh chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSession(baseURL, code, playerID, hostToken string, opts ...Option) *Session {
	o := options{
		initialBackoff: DEFAULT_INITIAL_BACKOFF,
		maxBackoff:     DEFAULT_MAX_BACKOFF,
		maxAttempts:    DEFAULT_MAX_ATTEMPTS,
		pollInterval:   DEFAULT_POLL_INTERVAL,
		pingInterval:   DEFAULT_PING_INTERVAL,
		readTimeout:    DEFAULT_READ_TIMEOUT,
		dialer:         websocket.DefaultDialer,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	// 握手期间不会轮询，握手超时不超过轮询间隔
	dialer := *o.dialer
	if dialer.HandshakeTimeout <= 0 || dialer.HandshakeTimeout > o.pollInterval {
		dialer.HandshakeTimeout = o.pollInterval
	}
	o.dialer = &dialer

	return &Session{
		api:         NewAPI(baseURL, o.httpClient),
		code:        code,
		playerID:    playerID,
		hostToken:   hostToken,
		opts:        o,
		log:         o.logger.With(zap.String("room_code", code), zap.String("player_id", playerID)),
		updates:     make(chan struct{}, 1),
		reconnectCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Start 启动连接协程。整个会话只有这一个协程持有推送连接。
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		go s.run(ctx)
	})
}

// Close 主动断开，等待连接协程退出，之后不会再发起任何重连
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		// 未启动过的会话之后也不允许再启动
		s.startOnce.Do(func() {})
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}

// Reconnect 在自动重连放弃后重新开始一轮重连
func (s *Session) Reconnect() {
	select {
	case s.reconnectCh <- struct{}{}:
	default:
	}
}

// Updates 在本地视图变化时收到通知，多次变化可能合并为一次
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Session) HostToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostToken
}

// Lobby 返回本地大厅视图的拷贝，尚未收到任何状态时 ok 为 false
func (s *Session) Lobby() (dto.LobbySnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lobby == nil {
		return dto.LobbySnapshot{}, false
	}
	return cloneLobby(s.lobby), true
}

// Round 返回本地回合视图的拷贝，当前没有回合时为 nil
func (s *Session) Round() *dto.RoundState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == nil {
		return nil
	}
	rs := cloneRound(s.round)
	return &rs
}

// Version 返回本地视图中最新的房间版本号
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.lobbyVersion, s.roundVersion)
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()

	if !changed {
		return
	}
	s.log.Debug("连接状态变化", zap.Stringer("state", st.State), zap.Int("attempt", st.Attempt))
	if s.opts.onStatus != nil {
		s.opts.onStatus(st)
	}
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// 以下 apply* 只在服务器版本不低于本地版本时覆盖本地视图

func (s *Session) applyLobbyLocked(lobby *dto.LobbySnapshot, version uint64) bool {
	if lobby == nil || (s.lobby != nil && version < s.lobbyVersion) {
		return false
	}
	cp := cloneLobby(lobby)
	s.lobby = &cp
	s.lobbyVersion = version
	return true
}

func (s *Session) applyRoundLocked(round *dto.RoundState, version uint64) bool {
	if s.hasRound && version < s.roundVersion {
		return false
	}
	if round == nil {
		s.round = nil
	} else {
		cp := cloneRound(round)
		s.round = &cp
	}
	s.roundVersion = version
	s.hasRound = true
	return true
}

// applyEvent 合并一条推送事件。返回 true 表示本地视图落后，需要请求完整快照。
func (s *Session) applyEvent(ev dto.Event) bool {
	s.mu.Lock()
	changed := false
	stale := false

	switch ev.Type {
	case dto.EVENT_SNAPSHOT:
		changed = s.applyLobbyLocked(ev.Lobby, ev.Version)
		changed = s.applyRoundLocked(ev.Round, ev.Version) || changed

	case dto.EVENT_LOBBY:
		changed = s.applyLobbyLocked(ev.Lobby, ev.Version)

	case dto.EVENT_ROUND:
		changed = s.applyRoundLocked(ev.Round, ev.Version)

	case dto.EVENT_HEARTBEAT_ACK:
		stale = ev.Version > max(s.lobbyVersion, s.roundVersion)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return stale
}

// refresh 通过拉取接口获取最新的大厅和回合
func (s *Session) refresh(ctx context.Context) error {
	lobby, err := s.api.Lobby(ctx, s.code)
	if err != nil {
		return err
	}
	round, err := s.api.Round(ctx, s.code)
	if err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.applyLobbyLocked(&lobby, lobby.Version)
	changed = s.applyRoundLocked(round.Round, round.Version) || changed
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Refresh 立即拉取一次完整状态，与推送通道状态无关
func (s *Session) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *Session) connected() bool {
	return s.Status().State == StateConnected
}

func (s *Session) backoffDelay(attempt int) time.Duration {
	delay := s.opts.initialBackoff
	for i := 1; i < attempt && delay < s.opts.maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, s.opts.maxBackoff)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setStatus(Status{State: StateDisconnected})

	attempt := 0
	for {
		s.setStatus(Status{State: StateConnecting, Attempt: attempt})

		opened, err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if opened {
			attempt = 0
		}
		s.log.Info("推送通道不可用", zap.Bool("was_open", opened), zap.Error(err))

		attempt++
		if attempt > s.opts.maxAttempts {
			s.log.Warn("自动重连次数已用尽", zap.Int("attempts", s.opts.maxAttempts))
			s.setStatus(Status{State: StateDisconnected, Notice: giveUpNotice})
			if !s.pollUntil(ctx, nil, s.reconnectCh) {
				return
			}
			attempt = 0
			continue
		}

		s.setStatus(Status{State: StateBackoff, Attempt: attempt})
		timer := time.NewTimer(s.backoffDelay(attempt))
		ok := s.pollUntil(ctx, timer.C, nil)
		timer.Stop()
		if !ok {
			return
		}
	}
}

// pollUntil 在推送不可用期间轮询，直到 wake 或 manual 触发。ctx 结束时返回 false。
func (s *Session) pollUntil(ctx context.Context, wake <-chan time.Time, manual <-chan struct{}) bool {
	ticker := time.NewTicker(s.opts.pollInterval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return false
		case <-wake:
			return true
		case <-manual:
			return true
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Session) poll(ctx context.Context) {
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Debug("轮询失败", zap.Error(err))
	}
}

// connectAndServe 建立推送连接并持续读取，直到连接断开或 ctx 结束。
// opened 表示连接是否成功建立过。
func (s *Session) connectAndServe(ctx context.Context) (opened bool, err error) {
	conn, resp, err := s.opts.dialer.DialContext(ctx, s.api.wsURL(s.code, s.playerID), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return false, fmt.Errorf("建立推送通道失败 (%d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("建立推送通道失败: %w", err)
	}
	defer conn.Close()

	// 主动断开时关闭连接，让阻塞中的读取立即返回
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	readTimeout := s.opts.readTimeout
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(DEFAULT_WRITE_TIMEOUT))
	})

	// 重连后立即请求完整快照，弥补断线期间错过的更新
	writeCh := make(chan string, 4)
	writeCh <- dto.CLIENT_SYNC

	s.setStatus(Status{State: StateConnected})

	writerDone := make(chan struct{})
	defer close(writerDone)

	go func() {
		ticker := time.NewTicker(s.opts.pingInterval)
		defer ticker.Stop()

		send := func(msgType string) bool {
			conn.SetWriteDeadline(time.Now().Add(DEFAULT_WRITE_TIMEOUT))
			if err := conn.WriteJSON(dto.ClientMessage{Type: msgType}); err != nil {
				conn.Close()
				return false
			}
			return true
		}

		for {
			select {
			case <-writerDone:
				return
			case msgType := <-writeCh:
				if !send(msgType) {
					return
				}
			case <-ticker.C:
				if !send(dto.CLIENT_PING) {
					return
				}
			}
		}
	}()

	for {
		var ev dto.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if s.applyEvent(ev) {
			select {
			case writeCh <- dto.CLIENT_SYNC:
			default:
			}
		}
	}
}

// mutate 包装一次变更调用：计入待处理动作，失败且推送不可用时拉取一次以撤销乐观修改
func (s *Session) mutate(ctx context.Context, optimistic func(), call func() error) error {
	s.mu.Lock()
	s.pending++
	if optimistic != nil {
		optimistic()
	}
	s.mu.Unlock()
	if optimistic != nil {
		s.notify()
	}

	err := call()

	s.mu.Lock()
	s.pending--
	s.mu.Unlock()

	if err != nil && optimistic != nil {
		if rerr := s.refresh(ctx); rerr != nil {
			s.log.Debug("撤销乐观修改失败", zap.Error(rerr))
		}
	}
	return err
}

func (s *Session) mergeLobby(lobby dto.LobbySnapshot) {
	s.mu.Lock()
	changed := s.applyLobbyLocked(&lobby, lobby.Version)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// 服务器只返回了部分视图，推送不可用时补一次拉取
func (s *Session) catchUp(ctx context.Context) {
	if s.connected() {
		return
	}
	s.poll(ctx)
}

func (s *Session) ToggleReady(ctx context.Context) error {
	optimistic := func() {
		if s.lobby == nil {
			return
		}
		for i := range s.lobby.Players {
			if s.lobby.Players[i].ID != s.playerID {
				continue
			}
			s.lobby.Players[i].Ready = !s.lobby.Players[i].Ready
			if s.lobby.Players[i].Ready {
				s.lobby.ReadyCount++
			} else {
				s.lobby.ReadyCount--
			}
		}
	}

	return s.mutate(ctx, optimistic, func() error {
		lobby, err := s.api.ToggleReady(ctx, s.code, s.playerID)
		if err != nil {
			return err
		}
		s.mergeLobby(lobby)
		return nil
	})
}

func (s *Session) UpdateRules(ctx context.Context, patch game.RulesPatch) error {
	return s.mutate(ctx, nil, func() error {
		lobby, err := s.api.UpdateRules(ctx, s.code, s.HostToken(), patch)
		if err != nil {
			return err
		}
		s.mergeLobby(lobby)
		return nil
	})
}

func (s *Session) StartRound(ctx context.Context) (dto.RoundState, error) {
	var round dto.RoundState
	err := s.mutate(ctx, nil, func() error {
		var err error
		round, err = s.api.StartRound(ctx, s.code, s.HostToken())
		if err != nil {
			return err
		}

		s.mu.Lock()
		changed := s.applyRoundLocked(&round, round.Version)
		s.mu.Unlock()
		if changed {
			s.notify()
		}
		s.catchUp(ctx)
		return nil
	})
	return round, err
}

// DrawQuestion 以本设备玩家的身份抽题；force 为 true 时以主持人身份代抽
func (s *Session) DrawQuestion(ctx context.Context, force bool) (dto.DrawQuestionResponse, error) {
	req := dto.DrawQuestionRequest{PlayerID: s.playerID}
	if force {
		req = dto.DrawQuestionRequest{HostToken: s.HostToken()}
	}

	var resp dto.DrawQuestionResponse
	err := s.mutate(ctx, nil, func() error {
		var err error
		resp, err = s.api.DrawQuestion(ctx, s.code, req)
		if err != nil {
			return err
		}

		s.mu.Lock()
		changed := false
		if s.round != nil && resp.Version >= s.roundVersion {
			s.round.CurrentQuestion = &game.AskedQuestion{
				Question: resp.Question,
				AskerID:  resp.AskerID,
				Sequence: resp.AskedTotal,
			}
			s.round.CurrentTurnPlayerID = resp.NextTurnPlayerID
			s.round.AskedTotal = resp.AskedTotal
			s.round.Version = resp.Version
			s.roundVersion = resp.Version
			changed = true
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}
		return nil
	})
	return resp, err
}

func (s *Session) SubmitGuess(ctx context.Context, accusedPlayerID string, locationID *int) (game.Resolution, error) {
	req := dto.GuessRequest{
		PlayerID:        s.playerID,
		AccusedPlayerID: accusedPlayerID,
		LocationID:      locationID,
	}

	var resp dto.GuessResponse
	err := s.mutate(ctx, nil, func() error {
		var err error
		resp, err = s.api.SubmitGuess(ctx, s.code, req)
		if err != nil {
			return err
		}

		s.mu.Lock()
		changed := false
		if s.round != nil && resp.Version >= s.roundVersion {
			res := resp.Resolution
			s.round.Resolved = true
			s.round.Resolution = &res
			s.round.Version = resp.Version
			s.roundVersion = resp.Version
			changed = true
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}
		s.catchUp(ctx)
		return nil
	})
	return resp.Resolution, err
}

func (s *Session) Abort(ctx context.Context, scope string) error {
	return s.mutate(ctx, nil, func() error {
		lobby, err := s.api.Abort(ctx, s.code, s.HostToken(), scope)
		if err != nil {
			return err
		}
		s.mergeLobby(lobby)
		s.catchUp(ctx)
		return nil
	})
}

// Leave 离开房间并结束会话
func (s *Session) Leave(ctx context.Context) (dto.LeaveRoomResponse, error) {
	var resp dto.LeaveRoomResponse
	err := s.mutate(ctx, nil, func() error {
		var err error
		resp, err = s.api.LeaveRoom(ctx, s.code, s.playerID)
		return err
	})
	if err != nil {
		return resp, err
	}
	s.Close()
	return resp, nil
}

// ClaimHost 在成为新的主持人后领取主持人令牌
func (s *Session) ClaimHost(ctx context.Context) error {
	resp, err := s.api.HostToken(ctx, s.code, s.opts.playerToken)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.hostToken = resp.HostToken
	s.mu.Unlock()
	return nil
}

// Assignment 获取本设备玩家在当前回合的身份
func (s *Session) Assignment(ctx context.Context) (game.Assignment, error) {
	return s.api.Assignment(ctx, s.code, s.opts.playerToken)
}

// ErrGaveUp 可用于判断会话是否已放弃自动重连
var ErrGaveUp = errors.New("自动重连已放弃")

// Err 在自动重连放弃后返回 ErrGaveUp
func (s *Session) Err() error {
	if s.Status().Notice != "" {
		return ErrGaveUp
	}
	return nil
}

func cloneLobby(l *dto.LobbySnapshot) dto.LobbySnapshot {
	cp := *l
	cp.Players = slices.Clone(l.Players)
	cp.History = slices.Clone(l.History)
	cp.Rules = l.Rules.Clone()
	if l.LastRound != nil {
		last := *l.LastRound
		cp.LastRound = &last
	}
	return cp
}

func cloneRound(r *dto.RoundState) dto.RoundState {
	cp := *r
	cp.TurnOrder = slices.Clone(r.TurnOrder)
	if r.CurrentQuestion != nil {
		q := *r.CurrentQuestion
		cp.CurrentQuestion = &q
	}
	if r.Resolution != nil {
		res := *r.Resolution
		cp.Resolution = &res
	}
	return cp
}
