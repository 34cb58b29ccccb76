package service

import (
	"slices"
	"time"

	"imposter-room-be/internal/service/dto"
)

// 以下视图在房间锁内构建，返回的值不与房间状态共享可变内存，
// 释放锁之后可以安全地交给其他协程。

func buildLobby(r *room) dto.LobbySnapshot {
	gc := r.gc

	players := make([]dto.Player, 0, len(gc.Players))
	for _, p := range gc.Players {
		players = append(players, dto.Player{
			ID:           p.ID,
			Name:         p.Name,
			CrewWins:     p.CrewWins,
			ImposterWins: p.ImposterWins,
			Ready:        p.Ready,
			IsLeader:     gc.IsLeader(p.ID),
		})
	}

	snapshot := dto.LobbySnapshot{
		Code:        r.code,
		Phase:       gc.Phase,
		LeaderID:    gc.LeaderID,
		Players:     players,
		Rules:       gc.Rules.Clone(),
		PlayerCount: len(gc.Players),
		MaxPlayers:  gc.Rules.MaxPlayers,
		ReadyCount:  gc.ReadyCount(),
		RoundNumber: gc.RoundsStarted(),
		History:     slices.Clone(gc.History),
		CreatedAt:   gc.CreatedAt,
		Version:     r.version,
	}

	if last := gc.LastHistory(); last != nil {
		entry := *last
		snapshot.LastRound = &entry
	}

	return snapshot
}

// buildRound 返回回合的公开视图，没有回合时返回 nil
func buildRound(r *room) *dto.RoundState {
	round := r.gc.Round
	if round == nil {
		return nil
	}

	state := &dto.RoundState{
		RoundNumber:         round.Number,
		StartedAt:           round.StartedAt,
		DeadlineAt:          round.StartedAt.Add(time.Duration(r.gc.Rules.RoundTimeSeconds) * time.Second),
		TurnOrder:           slices.Clone(round.TurnOrder),
		CurrentTurnPlayerID: round.CurrentTurnID(),
		AskedTotal:          round.AskedTotal,
		Resolved:            round.IsResolved(),
		Version:             r.version,
	}

	if round.CurrentQuestion != nil {
		q := *round.CurrentQuestion
		state.CurrentQuestion = &q
	}
	if round.Resolution != nil {
		res := *round.Resolution
		state.Resolution = &res
	}

	return state
}
