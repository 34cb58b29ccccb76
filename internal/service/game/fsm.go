package game

import (
	"fmt"
	"slices"
)

// 阶段迁移表：
//
//	Lobby             -> InRound | Ended
//	InRound           -> AwaitingNextRound | Ended
//	AwaitingNextRound -> InRound | Ended
//	Ended             -> （终态）
var transitions = map[Phase][]Phase{
	PhaseLobby:             {PhaseInRound, PhaseEnded},
	PhaseInRound:           {PhaseAwaitingNextRound, PhaseEnded},
	PhaseAwaitingNextRound: {PhaseInRound, PhaseEnded},
	PhaseEnded:             {},
}

func (p Phase) CanTransitionTo(next Phase) bool {
	return slices.Contains(transitions[p], next)
}

func (p Phase) String() string {
	return string(p)
}

// switchPhase 只在迁移合法时修改阶段
func (gc *GameContext) switchPhase(next Phase) error {
	if gc.Phase == PhaseEnded {
		return ErrRoomClosed
	}
	if !gc.Phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: 无法从 %s 切换到 %s", ErrInvalidPhase, gc.Phase, next)
	}

	gc.Phase = next

	return nil
}

// requirePhase 检查当前阶段是否在允许列表中
func (gc *GameContext) requirePhase(allowed ...Phase) error {
	if gc.Phase == PhaseEnded {
		return ErrRoomClosed
	}
	if !slices.Contains(allowed, gc.Phase) {
		return fmt.Errorf("%w: 当前阶段为 %s", ErrInvalidPhase, gc.Phase)
	}
	return nil
}
