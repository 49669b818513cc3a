// Package special holds the special cards of Special mode. Each card lives
// in its own file and is registered on a Registry that the game package
// consumes through game.SpecialCardProvider.
package special

import (
	"equation-game-server/cards"
	"equation-game-server/game"
)

// Card defines the interface that all special cards must implement.
type Card interface {
	Rank() cards.Rank
	Name() string
	Description() string
	// NeedsTarget is true for cards that wait for a second input.
	NeedsTarget() bool
	// EndsTurn is true for cards that use up the player's turn.
	EndsTurn() bool
	Resolve(sc *game.SpecialContext) error
}

// Registry holds all registered special cards indexed by rank.
type Registry struct {
	specials map[cards.Rank]Card
	order    []cards.Rank // registration order for deterministic AllSpecials()
}

var _ game.SpecialCardProvider = (*Registry)(nil)

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{specials: make(map[cards.Rank]Card)}
}

// Register adds a special card to the registry, replacing any card of the same rank.
func (r *Registry) Register(c Card) {
	rank := c.Rank()
	if _, exists := r.specials[rank]; !exists {
		r.order = append(r.order, rank)
	}
	r.specials[rank] = c
}

func toDef(c Card) game.SpecialCardDef {
	return game.SpecialCardDef{
		Rank:        c.Rank(),
		Name:        c.Name(),
		Description: c.Description(),
		NeedsTarget: c.NeedsTarget(),
		EndsTurn:    c.EndsTurn(),
		Resolve:     c.Resolve,
	}
}

// GetSpecial returns the definition of the card with the given rank.
// It satisfies the game.SpecialCardProvider interface.
func (r *Registry) GetSpecial(rank cards.Rank) (game.SpecialCardDef, bool) {
	c, ok := r.specials[rank]
	if !ok {
		return game.SpecialCardDef{}, false
	}
	return toDef(c), true
}

// AllSpecials returns every registered card, in registration order.
// It satisfies the game.SpecialCardProvider interface.
func (r *Registry) AllSpecials() []game.SpecialCardDef {
	defs := make([]game.SpecialCardDef, 0, len(r.order))
	for _, rank := range r.order {
		defs = append(defs, toDef(r.specials[rank]))
	}
	return defs
}

// RegisterAll registers the built-in special cards.
// Adding a new special card only requires registering it here.
func RegisterAll(r *Registry) {
	r.Register(&CloneCard{})
	r.Register(&SabotageCard{})
	r.Register(&ShuffleCard{})
	r.Register(&DestinyCard{})
	r.Register(&GambleCard{})
}
