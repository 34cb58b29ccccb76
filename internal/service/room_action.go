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

// room 是单个房间的权威状态。所有修改都在写锁内完成，
// 并在同一把锁内推送事件，保证推送顺序与提交顺序一致。
type room struct {
	code string

	mu         sync.RWMutex
	gc         *game.GameContext
	version    uint64
	hub        *fanout.Hub
	rng        *rand.Rand
	lastActive time.Time
	closed     bool
}

// commit 在每次成功修改后调用：递增版本号并推送事件
func (r *room) commit(eventType string, now time.Time) {
	r.version++
	r.lastActive = now

	r.hub.Publish(r.event(eventType))
}

func (r *room) event(eventType string) dto.Event {
	ev := dto.Event{Type: eventType, Version: r.version}

	switch eventType {
	case dto.EVENT_SNAPSHOT:
		lobby := buildLobby(r)
		ev.Lobby = &lobby
		ev.Round = buildRound(r)
	case dto.EVENT_LOBBY:
		lobby := buildLobby(r)
		ev.Lobby = &lobby
	case dto.EVENT_ROUND:
		ev.Round = buildRound(r)
	}

	return ev
}

// mutate 在房间写锁内执行 fn；房间进入终态后将其从注册表移除
func (rs *RoomService) mutate(code string, fn func(r *room, now time.Time) error) error {
	r, err := rs.getRoom(code)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return game.ErrRoomNotFound
	}

	err = fn(r, rs.now())
	ended := r.gc.Phase == game.PhaseEnded
	r.mu.Unlock()

	if ended {
		rs.removeRoom(r)
	}

	return err
}

func (rs *RoomService) read(code string, fn func(r *room) error) error {
	r, err := rs.getRoom(code)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return game.ErrRoomNotFound
	}

	return fn(r)
}

// requireHost 校验令牌，并要求令牌中的玩家仍然是当前房主
func (rs *RoomService) requireHost(r *room, token string) error {
	leaderID, err := rs.tokens.Verify(token, r.code)
	if err != nil {
		return err
	}
	if !r.gc.IsLeader(leaderID) {
		return game.ErrNotHost
	}
	return nil
}

func (rs *RoomService) Lobby(code string) (dto.LobbySnapshot, error) {
	var snapshot dto.LobbySnapshot

	err := rs.read(code, func(r *room) error {
		snapshot = buildLobby(r)
		return nil
	})

	return snapshot, err
}

func (rs *RoomService) Round(code string) (dto.RoundResponse, error) {
	var resp dto.RoundResponse

	err := rs.read(code, func(r *room) error {
		resp = dto.RoundResponse{Round: buildRound(r), Version: r.version}
		return nil
	})

	return resp, err
}

// Snapshot 返回包含大厅与回合的完整快照事件
func (rs *RoomService) Snapshot(code string) (dto.Event, error) {
	var ev dto.Event

	err := rs.read(code, func(r *room) error {
		ev = r.event(dto.EVENT_SNAPSHOT)
		return nil
	})

	return ev, err
}

// Assignment 返回玩家令牌持有者本人的秘密身份
func (rs *RoomService) Assignment(code, playerToken string) (game.Assignment, error) {
	var view game.Assignment

	err := rs.read(code, func(r *room) error {
		playerID, err := rs.tokens.VerifyPlayer(playerToken, r.code)
		if err != nil {
			return err
		}

		view, err = game.AssignmentFor(r.gc, playerID)
		return err
	})

	return view, err
}

func (rs *RoomService) Locations(code string) (dto.LocationsResponse, error) {
	var resp dto.LocationsResponse

	err := rs.read(code, func(r *room) error {
		resp.Locations = make([]dto.LocationSummary, 0, len(r.gc.LocationPool))
		for _, loc := range r.gc.LocationPool {
			resp.Locations = append(resp.Locations, dto.LocationSummary{ID: loc.ID, Name: loc.Name})
		}
		return nil
	})

	return resp, err
}

// IssueHostToken 为当前房主重新签发令牌，房主变更后新房主凭自己的玩家令牌取得房主令牌
func (rs *RoomService) IssueHostToken(code, playerToken string) (dto.HostTokenResponse, error) {
	var resp dto.HostTokenResponse

	err := rs.read(code, func(r *room) error {
		playerID, err := rs.tokens.VerifyPlayer(playerToken, r.code)
		if err != nil {
			return err
		}
		if r.gc.GetPlayer(playerID) == nil {
			return game.ErrPlayerNotFound
		}
		if !r.gc.IsLeader(playerID) {
			return game.ErrNotHost
		}

		token, err := rs.tokens.Issue(r.code, playerID, rs.now())
		if err != nil {
			return fmt.Errorf("签发房主令牌失败: %w", err)
		}

		resp = dto.HostTokenResponse{HostToken: token, LeaderID: playerID}
		return nil
	})

	return resp, err
}

// Subscribe 订阅房间推送，第一条事件是订阅时刻的完整快照
func (rs *RoomService) Subscribe(code, playerID string) (*fanout.Subscriber, func(), error) {
	var sub *fanout.Subscriber
	var hub *fanout.Hub

	err := rs.read(code, func(r *room) error {
		if r.gc.GetPlayer(playerID) == nil {
			return game.ErrPlayerNotFound
		}

		var err error
		sub, err = r.hub.Subscribe(rs.genSubID(), playerID, r.event(dto.EVENT_SNAPSHOT))
		if err != nil {
			return game.ErrRoomNotFound
		}
		hub = r.hub

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return sub, func() { hub.Unsubscribe(sub) }, nil
}

func (rs *RoomService) LeaveRoom(code, playerID string) (dto.LeaveRoomResponse, error) {
	var resp dto.LeaveRoomResponse

	err := rs.mutate(code, func(r *room, now time.Time) error {
		res, err := game.RemovePlayer(r.gc, playerID)
		if err != nil {
			return err
		}

		if res.RoundDiscarded || res.Empty {
			r.commit(dto.EVENT_SNAPSHOT, now)
		} else {
			r.commit(dto.EVENT_LOBBY, now)
		}

		resp = dto.LeaveRoomResponse{
			Code:     r.code,
			LeaderID: r.gc.LeaderID,
			Closed:   res.Empty,
			Version:  r.version,
		}

		zap.L().Info(
			"玩家离开房间",
			zap.String("room_code", r.code),
			zap.String("player_id", playerID),
			zap.Bool("round_discarded", res.RoundDiscarded),
			zap.Bool("room_closed", res.Empty),
		)
		if res.LeaderChanged {
			zap.L().Info(
				"房主已转移",
				zap.String("room_code", r.code),
				zap.String("player_id", res.NewLeaderID),
			)
		}

		return nil
	})

	return resp, err
}

func (rs *RoomService) ToggleReady(code, playerID string) (dto.LobbySnapshot, error) {
	var snapshot dto.LobbySnapshot

	err := rs.mutate(code, func(r *room, now time.Time) error {
		if _, err := game.ToggleReady(r.gc, playerID); err != nil {
			return err
		}

		r.commit(dto.EVENT_LOBBY, now)
		snapshot = buildLobby(r)

		return nil
	})

	return snapshot, err
}

func (rs *RoomService) UpdateRules(code, token string, patch game.RulesPatch) (dto.LobbySnapshot, error) {
	var snapshot dto.LobbySnapshot

	err := rs.mutate(code, func(r *room, now time.Time) error {
		if err := rs.requireHost(r, token); err != nil {
			return err
		}
		if err := game.UpdateRules(r.gc, patch, rs.catalog); err != nil {
			return err
		}

		r.commit(dto.EVENT_LOBBY, now)
		snapshot = buildLobby(r)

		return nil
	})

	return snapshot, err
}

func (rs *RoomService) StartRound(code, token string) (dto.RoundState, error) {
	var state dto.RoundState

	err := rs.mutate(code, func(r *room, now time.Time) error {
		if err := rs.requireHost(r, token); err != nil {
			return err
		}

		round, err := game.StartRound(r.gc, rs.catalog, r.rng, now)
		if err != nil {
			return err
		}

		r.commit(dto.EVENT_SNAPSHOT, now)
		state = *buildRound(r)

		zap.L().Info(
			"回合开始",
			zap.String("room_code", r.code),
			zap.Int("round_number", round.Number),
			zap.Int("players", len(round.TurnOrder)),
			zap.Uint64("version", r.version),
		)

		return nil
	})

	return state, err
}

// DrawQuestion 由回合内的玩家抽题；携带有效房主令牌时视为房主强制抽题
func (rs *RoomService) DrawQuestion(code string, req dto.DrawQuestionRequest) (dto.DrawQuestionResponse, error) {
	var resp dto.DrawQuestionResponse

	err := rs.mutate(code, func(r *room, now time.Time) error {
		actorID := req.PlayerID
		if req.HostToken != "" {
			if err := rs.requireHost(r, req.HostToken); err != nil {
				return err
			}
			actorID = ""
		} else if actorID == "" {
			return fmt.Errorf("%w: 需要 player_id 或房主令牌", game.ErrValidation)
		}

		result, err := game.DrawNextQuestion(r.gc, rs.catalog, r.rng, actorID)
		if err != nil {
			return err
		}

		r.commit(dto.EVENT_ROUND, now)
		resp = dto.DrawQuestionResponse{
			Question:         result.Question,
			AskerID:          result.AskerID,
			NextTurnPlayerID: result.NextTurnPlayerID,
			AskedTotal:       result.AskedTotal,
			Version:          r.version,
		}

		return nil
	})

	return resp, err
}

func (rs *RoomService) SubmitGuess(code string, req dto.GuessRequest) (dto.GuessResponse, error) {
	var resp dto.GuessResponse

	err := rs.mutate(code, func(r *room, now time.Time) error {
		resolution, err := game.SubmitGuess(r.gc, req.ToGuess(), now)
		if err != nil {
			return err
		}

		r.commit(dto.EVENT_SNAPSHOT, now)
		resp = dto.GuessResponse{Resolution: resolution, Version: r.version}

		zap.L().Info(
			"回合结算",
			zap.String("room_code", r.code),
			zap.String("player_id", req.PlayerID),
			zap.String("outcome", string(resolution.Outcome.Kind())),
			zap.String("winner", string(resolution.Winner())),
			zap.Uint64("version", r.version),
		)

		return nil
	})

	return resp, err
}

func (rs *RoomService) Abort(code, token, scope string) (dto.LobbySnapshot, error) {
	var snapshot dto.LobbySnapshot

	err := rs.mutate(code, func(r *room, now time.Time) error {
		if err := rs.requireHost(r, token); err != nil {
			return err
		}

		switch scope {
		case dto.ABORT_SCOPE_ROUND:
			if err := game.AbortRound(r.gc); err != nil {
				return err
			}
		case dto.ABORT_SCOPE_GAME:
			if err := game.EndGame(r.gc); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: 未知的中止范围 %q", game.ErrValidation, scope)
		}

		r.commit(dto.EVENT_SNAPSHOT, now)
		snapshot = buildLobby(r)

		zap.L().Info(
			"房主中止",
			zap.String("room_code", r.code),
			zap.String("scope", scope),
			zap.Uint64("version", r.version),
		)

		return nil
	})

	return snapshot, err
}

// SubscriberCount 返回房间当前的推送订阅数
func (rs *RoomService) SubscriberCount(code string) (int, error) {
	var n int

	err := rs.read(code, func(r *room) error {
		n = r.hub.Count()
		return nil
	})

	return n, err
}

func (rs *RoomService) Version(code string) (uint64, error) {
	var version uint64

	err := rs.read(code, func(r *room) error {
		version = r.version
		return nil
	})

	return version, err
}
