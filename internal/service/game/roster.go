package game

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxNameLength = 32

// GenID 生成玩家 ID（UUIDv7）
func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("生成 UUID 失败: " + err.Error())
	}

	return id.String()
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationf("玩家名称不能为空")
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", validationf("玩家名称不能超过 %d 个字符", MaxNameLength)
	}
	return trimmed, nil
}

// AddPlayer 只允许在大厅阶段加入；第一个加入的玩家成为房主
func AddPlayer(gc *GameContext, name string, now time.Time) (*Player, error) {
	trimmed, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	if err := gc.requirePhase(PhaseLobby); err != nil {
		return nil, err
	}

	if len(gc.Players) >= gc.Rules.MaxPlayers {
		return nil, ErrRoomFull
	}

	id := GenID()
	for gc.GetPlayer(id) != nil {
		id = GenID()
	}

	player := &Player{
		ID:       id,
		Name:     trimmed,
		JoinedAt: now,
	}

	gc.Players = append(gc.Players, player)

	if gc.LeaderID == "" {
		gc.LeaderID = player.ID
	}

	return player, nil
}

func ToggleReady(gc *GameContext, playerID string) (bool, error) {
	player := gc.GetPlayer(playerID)
	if player == nil {
		return false, ErrPlayerNotFound
	}

	if err := gc.requirePhase(PhaseLobby); err != nil {
		return false, err
	}

	player.Ready = !player.Ready

	return player.Ready, nil
}

func UpdateRules(gc *GameContext, patch RulesPatch, categories CategorySet) error {
	if err := gc.requirePhase(PhaseLobby); err != nil {
		return err
	}

	next := gc.Rules.Apply(patch)
	if err := next.Validate(categories); err != nil {
		return err
	}

	if next.MaxPlayers < len(gc.Players) {
		return validationf("max_players 不能小于当前玩家数 %d", len(gc.Players))
	}

	gc.Rules = next

	return nil
}

type LeaveResult struct {
	LeaderChanged  bool
	NewLeaderID    string
	RoundDiscarded bool
	// 房间已经没有玩家
	Empty bool
}

// RemovePlayer 处理玩家主动离开。
// 回合进行中离开会作废当前回合；房主离开时由最早加入的玩家接任。
func RemovePlayer(gc *GameContext, playerID string) (LeaveResult, error) {
	var result LeaveResult

	if gc.Phase == PhaseEnded {
		return result, ErrRoomClosed
	}

	idx := -1
	for i, p := range gc.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return result, ErrPlayerNotFound
	}

	gc.Players = append(gc.Players[:idx], gc.Players[idx+1:]...)

	if gc.Phase == PhaseInRound {
		gc.Round = nil
		gc.Phase = PhaseAwaitingNextRound
		result.RoundDiscarded = true
	}

	if len(gc.Players) == 0 {
		gc.LeaderID = ""
		gc.Phase = PhaseEnded
		result.Empty = true
		return result, nil
	}

	if gc.LeaderID == playerID {
		gc.LeaderID = gc.Players[0].ID
		result.LeaderChanged = true
		result.NewLeaderID = gc.LeaderID
	}

	return result, nil
}
