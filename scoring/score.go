// Package scoring turns an equation result into round points.
package scoring

import "math"

const (
	ExactBase       = 1000
	NearBase        = 500
	DistancePenalty = 10
	CardCost        = 20
)

// Score rewards landing close to target while charging for every card used.
// A pass (no result, no cards) scores 0; an exact hit scores
// ExactBase - CardCost*cardsUsed; anything else scores
// NearBase - DistancePenalty*|result-target| - CardCost*cardsUsed, floored at 0.
func Score(result float64, target int, cardsUsed int) int {
	if result == 0 && cardsUsed == 0 {
		return 0
	}
	diff := math.Abs(result - float64(target))
	if diff == 0 && cardsUsed > 0 {
		return ExactBase - CardCost*cardsUsed
	}
	s := math.Round(NearBase - DistancePenalty*diff - CardCost*float64(cardsUsed))
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	return int(s)
}
