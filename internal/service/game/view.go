package game

// Assignment 是单个玩家能看到的秘密信息。
// 卧底只知道自己是卧底；船员只知道地点和自己的身份，看不到其他人的信息。
type Assignment struct {
	RoundNumber  int    `json:"round_number"`
	IsImposter   bool   `json:"is_imposter"`
	LocationName string `json:"location_name,omitempty"`
	Role         string `json:"role,omitempty"`
}

func AssignmentFor(gc *GameContext, playerID string) (Assignment, error) {
	if gc.GetPlayer(playerID) == nil {
		return Assignment{}, ErrPlayerNotFound
	}
	if gc.Phase == PhaseEnded {
		return Assignment{}, ErrRoomClosed
	}

	round := gc.Round
	if round == nil {
		return Assignment{}, ErrNoRound
	}
	if !round.Participates(playerID) {
		return Assignment{}, ErrPlayerNotFound
	}

	if playerID == round.ImposterID {
		return Assignment{
			RoundNumber: round.Number,
			IsImposter:  true,
		}, nil
	}

	return Assignment{
		RoundNumber:  round.Number,
		IsImposter:   false,
		LocationName: round.Location.Name,
		Role:         round.Roles[playerID],
	}, nil
}
