package bot

import (
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
)

// Rand is the part of *math/rand.Rand the bot needs.
type Rand interface {
	Intn(n int) int
}

type weightedAction struct {
	action domain.Action
	weight int
}

// lateral movement dominates, the rest are occasional
var actionWeights = []weightedAction{
	{domain.ActionMoveLeft, 30},
	{domain.ActionMoveRight, 30},
	{domain.ActionRotate, 15},
	{domain.ActionMoveDown, 15},
	{domain.ActionHardDrop, 5},
	{domain.ActionHold, 5},
}

var totalWeight = func() int {
	total := 0
	for _, w := range actionWeights {
		total += w.weight
	}
	return total
}()

// ChooseAction picks one action from the player vocabulary by weight.
func ChooseAction(rng Rand) domain.Action {
	roll := rng.Intn(totalWeight)
	for _, w := range actionWeights {
		if roll < w.weight {
			return w.action
		}
		roll -= w.weight
	}
	return domain.ActionMoveDown
}

var decisionIntervals = map[domain.Difficulty]time.Duration{
	domain.DifficultyEasy:   1000 * time.Millisecond,
	domain.DifficultyMedium: 600 * time.Millisecond,
	domain.DifficultyHard:   300 * time.Millisecond,
}

// DecisionInterval falls back to medium for unknown difficulties.
func DecisionInterval(difficulty domain.Difficulty) time.Duration {
	if d, ok := decisionIntervals[difficulty]; ok {
		return d
	}
	return decisionIntervals[domain.DifficultyMedium]
}
