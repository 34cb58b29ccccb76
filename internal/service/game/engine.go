package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"imposter-room-be/internal/catalog"
)

// 回合引擎：以下函数只操作传入的 GameContext，不持有任何状态，
// 调用方需要保证同一房间内的调用是串行的。

// StartRound 开始新回合。首回合时抽取整局固定的地点池。
func StartRound(gc *GameContext, cat Catalog, rng *rand.Rand, now time.Time) (*Round, error) {
	if err := gc.requirePhase(PhaseLobby, PhaseAwaitingNextRound); err != nil {
		return nil, err
	}

	playerCount := len(gc.Players)
	if playerCount < MinPlayers {
		return nil, validationf("至少需要 %d 名玩家才能开始回合，当前 %d 名", MinPlayers, playerCount)
	}

	if len(gc.LocationPool) == 0 {
		pool, err := cat.SampleLocations(rng, gc.Rules.LocationPoolSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		gc.LocationPool = pool
	}

	location := gc.LocationPool[rng.IntN(len(gc.LocationPool))]
	if playerCount-1 > len(location.Roles) {
		return nil, validationf("地点 %q 只有 %d 个身份，无法容纳 %d 名船员", location.Name, len(location.Roles), playerCount-1)
	}

	imposterIdx := rng.IntN(playerCount)
	rolePerm := rng.Perm(len(location.Roles))

	roles := make(map[string]string, playerCount-1)
	next := 0
	for i, p := range gc.Players {
		if i == imposterIdx {
			continue
		}
		roles[p.ID] = location.Roles[rolePerm[next]]
		next++
	}

	turnOrder := make([]string, 0, playerCount)
	for _, idx := range rng.Perm(playerCount) {
		turnOrder = append(turnOrder, gc.Players[idx].ID)
	}

	for _, p := range gc.Players {
		p.Ready = false
	}

	gc.roundsStarted++
	gc.Round = &Round{
		Number:     gc.roundsStarted,
		Location:   location,
		ImposterID: gc.Players[imposterIdx].ID,
		Roles:      roles,
		TurnOrder:  turnOrder,
		TurnIndex:  0,
		AskedIDs:   make(map[string]struct{}),
		StartedAt:  now,
	}

	if err := gc.switchPhase(PhaseInRound); err != nil {
		return nil, err
	}

	return gc.Round, nil
}

type DrawResult struct {
	Question         catalog.Question
	AskerID          string
	NextTurnPlayerID string
	AskedTotal       int
}

// requireOpenRound 检查存在一个未结算的回合
func (gc *GameContext) requireOpenRound() error {
	if gc.Phase == PhaseEnded {
		return ErrRoomClosed
	}
	if gc.Round == nil {
		return ErrNoRound
	}
	if gc.Round.IsResolved() {
		return ErrAlreadyResolved
	}
	return gc.requirePhase(PhaseInRound)
}

// DrawNextQuestion 为当前轮到的玩家抽一道题，然后把回合指针移到下一位。
// actorID 为空表示房主强制抽题。
func DrawNextQuestion(gc *GameContext, cat Catalog, rng *rand.Rand, actorID string) (DrawResult, error) {
	if err := gc.requireOpenRound(); err != nil {
		return DrawResult{}, err
	}

	round := gc.Round
	if actorID != "" && !round.Participates(actorID) {
		return DrawResult{}, ErrPlayerNotFound
	}

	candidates := cat.Questions(gc.Rules.QuestionCategories)
	eligible := make([]catalog.Question, 0, len(candidates))
	for _, q := range candidates {
		if !gc.Rules.AllowRepeatedQuestions {
			if _, asked := round.AskedIDs[q.ID]; asked {
				continue
			}
		}
		eligible = append(eligible, q)
	}

	if len(eligible) == 0 {
		return DrawResult{}, ErrNoQuestionsAvailable
	}

	question := eligible[rng.IntN(len(eligible))]

	round.AskedTotal++
	round.AskedIDs[question.ID] = struct{}{}
	round.CurrentQuestion = &AskedQuestion{
		Question: question,
		AskerID:  round.CurrentTurnID(),
		Sequence: round.AskedTotal,
	}
	round.TurnIndex = (round.TurnIndex + 1) % len(round.TurnOrder)

	return DrawResult{
		Question:         question,
		AskerID:          round.CurrentQuestion.AskerID,
		NextTurnPlayerID: round.CurrentTurnID(),
		AskedTotal:       round.AskedTotal,
	}, nil
}

// SubmitGuess 结算回合。只有第一次被接受的猜测生效，之后的猜测返回 ErrAlreadyResolved。
func SubmitGuess(gc *GameContext, guess Guess, now time.Time) (Resolution, error) {
	if err := gc.requireOpenRound(); err != nil {
		return Resolution{}, err
	}

	outcome, err := evaluateGuess(gc, guess)
	if err != nil {
		return Resolution{}, err
	}

	round := gc.Round
	resolution := Resolution{Outcome: outcome, ResolvedAt: now}
	round.Resolution = &resolution

	applyTally(gc, round, outcome)

	gc.History = append(gc.History, HistoryEntry{
		RoundNumber:  round.Number,
		LocationID:   round.Location.ID,
		LocationName: round.Location.Name,
		ImposterID:   round.ImposterID,
		Resolution:   resolution,
	})

	if err := gc.switchPhase(PhaseAwaitingNextRound); err != nil {
		return Resolution{}, err
	}

	return resolution, nil
}

func evaluateGuess(gc *GameContext, guess Guess) (Outcome, error) {
	round := gc.Round

	if !round.Participates(guess.PlayerID) {
		return nil, ErrPlayerNotFound
	}

	hasAccused := guess.AccusedPlayerID != ""
	hasLocation := guess.LocationID != nil
	if hasAccused == hasLocation {
		return nil, validationf("accused_player_id 与 location_id 必须且只能提供一个")
	}

	if guess.PlayerID == round.ImposterID {
		if hasAccused {
			return nil, validationf("卧底只能猜测地点")
		}

		guessed := *guess.LocationID
		if _, ok := gc.PoolLocation(guessed); !ok {
			return nil, fmt.Errorf("%w: 地点 %d 不在本局地点池中", ErrLocationNotFound, guessed)
		}

		if guessed == round.Location.ID {
			return ImposterIdentifiedLocation{
				Impostor:     round.ImposterID,
				LocationID:   round.Location.ID,
				LocationName: round.Location.Name,
			}, nil
		}
		return ImposterFailedLocationGuess{
			Impostor:           round.ImposterID,
			GuessedLocationID:  guessed,
			ActualLocationID:   round.Location.ID,
			ActualLocationName: round.Location.Name,
		}, nil
	}

	if hasLocation {
		return nil, validationf("船员只能指认卧底")
	}
	if guess.AccusedPlayerID == guess.PlayerID {
		return nil, validationf("不能指认自己")
	}
	if !round.Participates(guess.AccusedPlayerID) {
		return nil, fmt.Errorf("%w: 被指认的玩家不在本回合中", ErrPlayerNotFound)
	}

	if guess.AccusedPlayerID == round.ImposterID {
		return CrewIdentifiedImposter{
			Accuser:  guess.PlayerID,
			Impostor: round.ImposterID,
		}, nil
	}
	return CrewMisdirected{
		Accuser:  guess.PlayerID,
		Accused:  guess.AccusedPlayerID,
		Impostor: round.ImposterID,
	}, nil
}

// applyTally 给获胜一方的每名玩家记一次胜场
func applyTally(gc *GameContext, round *Round, outcome Outcome) {
	var crewWon bool

	switch outcome.(type) {
	case CrewIdentifiedImposter, ImposterFailedLocationGuess:
		crewWon = true
	case CrewMisdirected, ImposterIdentifiedLocation:
		crewWon = false
	default:
		panic(fmt.Sprintf("未知的结算类型 %T", outcome))
	}

	for _, p := range gc.Players {
		if !round.Participates(p.ID) {
			continue
		}

		isImposter := p.ID == round.ImposterID
		switch {
		case crewWon && !isImposter:
			p.CrewWins++
		case !crewWon && isImposter:
			p.ImposterWins++
		}
	}
}

// AbortRound 丢弃当前回合，不记录历史
func AbortRound(gc *GameContext) error {
	if err := gc.requirePhase(PhaseInRound); err != nil {
		return err
	}

	gc.Round = nil

	return gc.switchPhase(PhaseAwaitingNextRound)
}

// EndGame 结束整局游戏，房间进入终态
func EndGame(gc *GameContext) error {
	return gc.switchPhase(PhaseEnded)
}
