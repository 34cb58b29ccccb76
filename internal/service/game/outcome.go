package game

import (
	"encoding/json"
	"fmt"
	"time"
)

type Winner string

const (
	WinnerCrew     Winner = "Crew"
	WinnerImposter Winner = "Imposter"
)

type OutcomeKind string

const (
	KindCrewIdentifiedImposter      OutcomeKind = "CrewIdentifiedImposter"
	KindCrewMisdirected             OutcomeKind = "CrewMisdirected"
	KindImposterIdentifiedLocation  OutcomeKind = "ImposterIdentifiedLocation"
	KindImposterFailedLocationGuess OutcomeKind = "ImposterFailedLocationGuess"
)

// Outcome 是封闭的结果类型，只有本包内的四种结构体实现它。
// 消费方需要对四种情况做穷尽匹配。
type Outcome interface {
	Kind() OutcomeKind
	Winner() Winner
	ImpostorID() string

	isOutcome()
}

// 船员指认出了卧底
type CrewIdentifiedImposter struct {
	Accuser  string `json:"accuser"`
	Impostor string `json:"impostor"`
}

// 船员指认错误
type CrewMisdirected struct {
	Accuser  string `json:"accuser"`
	Accused  string `json:"accused"`
	Impostor string `json:"impostor"`
}

// 卧底猜中了地点
type ImposterIdentifiedLocation struct {
	Impostor     string `json:"impostor"`
	LocationID   int    `json:"location_id"`
	LocationName string `json:"location_name"`
}

// 卧底猜错了地点
type ImposterFailedLocationGuess struct {
	Impostor           string `json:"impostor"`
	GuessedLocationID  int    `json:"guessed_location_id"`
	ActualLocationID   int    `json:"actual_location_id"`
	ActualLocationName string `json:"actual_location_name"`
}

func (CrewIdentifiedImposter) Kind() OutcomeKind      { return KindCrewIdentifiedImposter }
func (CrewMisdirected) Kind() OutcomeKind             { return KindCrewMisdirected }
func (ImposterIdentifiedLocation) Kind() OutcomeKind  { return KindImposterIdentifiedLocation }
func (ImposterFailedLocationGuess) Kind() OutcomeKind { return KindImposterFailedLocationGuess }

func (CrewIdentifiedImposter) Winner() Winner      { return WinnerCrew }
func (CrewMisdirected) Winner() Winner             { return WinnerImposter }
func (ImposterIdentifiedLocation) Winner() Winner  { return WinnerImposter }
func (ImposterFailedLocationGuess) Winner() Winner { return WinnerCrew }

func (o CrewIdentifiedImposter) ImpostorID() string      { return o.Impostor }
func (o CrewMisdirected) ImpostorID() string             { return o.Impostor }
func (o ImposterIdentifiedLocation) ImpostorID() string  { return o.Impostor }
func (o ImposterFailedLocationGuess) ImpostorID() string { return o.Impostor }

func (CrewIdentifiedImposter) isOutcome()      {}
func (CrewMisdirected) isOutcome()             {}
func (ImposterIdentifiedLocation) isOutcome()  {}
func (ImposterFailedLocationGuess) isOutcome() {}

// Resolution 一经写入便不可变，胜方由结果类型决定
type Resolution struct {
	Outcome    Outcome
	ResolvedAt time.Time
}

func (r Resolution) Winner() Winner {
	return r.Outcome.Winner()
}

type resolutionJSON struct {
	Winner     Winner          `json:"winner"`
	Outcome    json.RawMessage `json:"outcome"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

type outcomeEnvelope struct {
	Kind OutcomeKind `json:"kind"`
}

func (r Resolution) MarshalJSON() ([]byte, error) {
	if r.Outcome == nil {
		return nil, fmt.Errorf("结算结果缺少 outcome")
	}

	body, err := marshalOutcome(r.Outcome)
	if err != nil {
		return nil, err
	}

	return json.Marshal(resolutionJSON{
		Winner:     r.Outcome.Winner(),
		Outcome:    body,
		ResolvedAt: r.ResolvedAt,
	})
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	var raw resolutionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	outcome, err := unmarshalOutcome(raw.Outcome)
	if err != nil {
		return err
	}

	if outcome.Winner() != raw.Winner {
		return fmt.Errorf("结算结果不一致: %s 的胜方应为 %s，实际为 %s", outcome.Kind(), outcome.Winner(), raw.Winner)
	}

	r.Outcome = outcome
	r.ResolvedAt = raw.ResolvedAt

	return nil
}

// 在字段前附加 kind 标签
func marshalOutcome(o Outcome) ([]byte, error) {
	switch v := o.(type) {
	case CrewIdentifiedImposter:
		return json.Marshal(struct {
			Kind OutcomeKind `json:"kind"`
			CrewIdentifiedImposter
		}{v.Kind(), v})
	case CrewMisdirected:
		return json.Marshal(struct {
			Kind OutcomeKind `json:"kind"`
			CrewMisdirected
		}{v.Kind(), v})
	case ImposterIdentifiedLocation:
		return json.Marshal(struct {
			Kind OutcomeKind `json:"kind"`
			ImposterIdentifiedLocation
		}{v.Kind(), v})
	case ImposterFailedLocationGuess:
		return json.Marshal(struct {
			Kind OutcomeKind `json:"kind"`
			ImposterFailedLocationGuess
		}{v.Kind(), v})
	default:
		return nil, fmt.Errorf("未知的结算类型 %T", o)
	}
}

func unmarshalOutcome(data []byte) (Outcome, error) {
	var env outcomeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case KindCrewIdentifiedImposter:
		var v CrewIdentifiedImposter
		err := json.Unmarshal(data, &v)
		return v, err
	case KindCrewMisdirected:
		var v CrewMisdirected
		err := json.Unmarshal(data, &v)
		return v, err
	case KindImposterIdentifiedLocation:
		var v ImposterIdentifiedLocation
		err := json.Unmarshal(data, &v)
		return v, err
	case KindImposterFailedLocationGuess:
		var v ImposterFailedLocationGuess
		err := json.Unmarshal(data, &v)
		return v, err
	default:
		return nil, fmt.Errorf("未知的结算类型 %q", env.Kind)
	}
}
