package game

import "equation-game-server/cards"

// Player is one seat in a game. Equation, FinalResult and CardsUsed describe
// the player's last submission of the current round.
type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	UserID      string       `json:"userId,omitempty"`
	Hand        []cards.Card `json:"hand"`
	RoundScore  int          `json:"roundScore"`
	TotalScore  int          `json:"totalScore"`
	Passed      bool         `json:"passed"`
	FinalResult *float64     `json:"finalResult,omitempty"`
	Equation    []cards.Term `json:"equation,omitempty"`
	CardsUsed   []cards.Card `json:"cardsUsed,omitempty"`
}

// NewPlayer creates a Player with an empty hand.
func NewPlayer(id, name, userID string) *Player {
	return &Player{ID: id, Name: name, UserID: userID, Hand: []cards.Card{}}
}

func (p *Player) clone() *Player {
	c := *p
	c.Hand = cloneSlice(p.Hand)
	c.CardsUsed = cloneSlice(p.CardsUsed)
	c.Equation = cloneSlice(p.Equation)
	if p.FinalResult != nil {
		r := *p.FinalResult
		c.FinalResult = &r
	}
	return &c
}

// resetRound clears the per-round fields of a player.
func (p *Player) resetRound() {
	p.RoundScore = 0
	p.Passed = false
	p.FinalResult = nil
	p.Equation = nil
	p.CardsUsed = nil
}
