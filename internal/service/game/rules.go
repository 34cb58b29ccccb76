package game

import "slices"

const (
	MinPlayers = 2

	MinMaxPlayers = 3
	MaxMaxPlayers = 8

	MinRoundTimeSeconds = 30
	MaxRoundTimeSeconds = 600

	MinLocationPoolSize = 1
	MaxLocationPoolSize = 15
)

type Rules struct {
	MaxPlayers             int      `json:"max_players"`
	RoundTimeSeconds       int      `json:"round_time_seconds"`
	AllowRepeatedQuestions bool     `json:"allow_repeated_questions"`
	LocationPoolSize       int      `json:"location_pool_size"`
	QuestionCategories     []string `json:"question_categories"`
}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:             8,
		RoundTimeSeconds:       120,
		AllowRepeatedQuestions: false,
		LocationPoolSize:       10,
		QuestionCategories:     []string{},
	}
}

// RulesPatch 为局部更新，nil 字段保持原值
type RulesPatch struct {
	MaxPlayers             *int      `json:"max_players,omitempty"`
	RoundTimeSeconds       *int      `json:"round_time_seconds,omitempty"`
	AllowRepeatedQuestions *bool     `json:"allow_repeated_questions,omitempty"`
	LocationPoolSize       *int      `json:"location_pool_size,omitempty"`
	QuestionCategories     *[]string `json:"question_categories,omitempty"`
}

func (r Rules) Apply(p RulesPatch) Rules {
	next := r.Clone()

	if p.MaxPlayers != nil {
		next.MaxPlayers = *p.MaxPlayers
	}
	if p.RoundTimeSeconds != nil {
		next.RoundTimeSeconds = *p.RoundTimeSeconds
	}
	if p.AllowRepeatedQuestions != nil {
		next.AllowRepeatedQuestions = *p.AllowRepeatedQuestions
	}
	if p.LocationPoolSize != nil {
		next.LocationPoolSize = *p.LocationPoolSize
	}
	if p.QuestionCategories != nil {
		next.QuestionCategories = slices.Clone(*p.QuestionCategories)
	}

	return next
}

func (r Rules) Clone() Rules {
	r.QuestionCategories = slices.Clone(r.QuestionCategories)
	if r.QuestionCategories == nil {
		r.QuestionCategories = []string{}
	}
	return r
}

type CategorySet interface {
	HasCategory(category string) bool
}

// Validate 检查各项取值范围；categories 非 nil 时同时校验分类标签是否存在
func (r Rules) Validate(categories CategorySet) error {
	if r.MaxPlayers < MinMaxPlayers || r.MaxPlayers > MaxMaxPlayers {
		return validationf("max_players 必须在 %d 到 %d 之间", MinMaxPlayers, MaxMaxPlayers)
	}
	if r.RoundTimeSeconds < MinRoundTimeSeconds || r.RoundTimeSeconds > MaxRoundTimeSeconds {
		return validationf("round_time_seconds 必须在 %d 到 %d 之间", MinRoundTimeSeconds, MaxRoundTimeSeconds)
	}
	if r.LocationPoolSize < MinLocationPoolSize || r.LocationPoolSize > MaxLocationPoolSize {
		return validationf("location_pool_size 必须在 %d 到 %d 之间", MinLocationPoolSize, MaxLocationPoolSize)
	}

	seen := make(map[string]struct{}, len(r.QuestionCategories))
	for _, cat := range r.QuestionCategories {
		if _, dup := seen[cat]; dup {
			return validationf("问题分类 %q 重复", cat)
		}
		seen[cat] = struct{}{}

		if categories != nil && !categories.HasCategory(cat) {
			return validationf("未知的问题分类 %q", cat)
		}
	}

	return nil
}
