package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equation-game-server/cards"
	"equation-game-server/matcherrors"
)

func specialCard(id string, rank cards.Rank) cards.Card {
	return cards.Card{ID: id, Suit: cards.Special, Rank: rank}
}

func TestPlaySpecialCard_ImmediateEffect(t *testing.T) {
	env := newTestEnv(t, nil)
	resolved := 0
	env.svc.Specials = stubSpecials{
		cards.RankShuffle: {Rank: cards.RankShuffle, Name: "Shuffle", Resolve: func(*SpecialContext) error {
			resolved++
			return nil
		}},
	}
	ctx := context.Background()
	gameID, ids := env.started(t, cards.SpecialMode, "Ada", "Bob")
	current := rigHand(t, env, gameID, 0, specialCard("sh", cards.RankShuffle))
	require.Equal(t, ids[0], current)

	require.NoError(t, env.svc.PlaySpecialCard(ctx, gameID, current, "sh"))

	snap := env.snapshot(t, gameID)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, PhasePlayerTurn, snap.Game.State)
	assert.Equal(t, current, snap.Game.CurrentPlayerID, "free card keeps the turn")
	assert.Equal(t, -1, cards.IndexOf(snap.Players[current].Hand, "sh"))
	assert.GreaterOrEqual(t, cards.IndexOf(snap.Game.DiscardPile, "sh"), 0)
	assert.Equal(t, "Ada played Shuffle", snap.Game.Notice)
}

func TestPlaySpecialCard_TargetedFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	var got SpecialTarget
	env.svc.Specials = stubSpecials{
		cards.RankSabotage: {Rank: cards.RankSabotage, Name: "Sabotage", NeedsTarget: true, EndsTurn: true, Resolve: func(sc *SpecialContext) error {
			if sc.Target.PlayerID == sc.Actor.ID {
				return matcherrors.ErrInvalidTarget
			}
			got = sc.Target
			return nil
		}},
	}
	ctx := context.Background()
	gameID, ids := env.started(t, cards.SpecialMode, "Ada", "Bob")
	current := rigHand(t, env, gameID, 0, specialCard("sb", cards.RankSabotage))

	require.NoError(t, env.svc.PlaySpecialCard(ctx, gameID, current, "sb"))
	snap := env.snapshot(t, gameID)
	require.Equal(t, PhaseSpecialAction, snap.Game.State)
	require.NotNil(t, snap.Game.SpecialAction)
	assert.Equal(t, "sb", snap.Game.SpecialAction.CardID)

	// Cancelling keeps the card.
	require.NoError(t, env.svc.EndSpecialAction(ctx, gameID, current))
	snap = env.snapshot(t, gameID)
	assert.Equal(t, PhasePlayerTurn, snap.Game.State)
	assert.GreaterOrEqual(t, cards.IndexOf(snap.Players[current].Hand, "sb"), 0)

	require.NoError(t, env.svc.PlaySpecialCard(ctx, gameID, current, "sb"))
	require.NoError(t, env.svc.ResolveSpecialCard(ctx, gameID, ids[1], SpecialTarget{PlayerID: ids[0]}))
	assert.Equal(t, PhaseSpecialAction, env.snapshot(t, gameID).Game.State, "only the actor resolves")

	err := env.svc.ResolveSpecialCard(ctx, gameID, current, SpecialTarget{PlayerID: current})
	assert.ErrorIs(t, err, matcherrors.ErrInvalidTarget)
	assert.Equal(t, PhaseSpecialAction, env.snapshot(t, gameID).Game.State)

	require.NoError(t, env.svc.ResolveSpecialCard(ctx, gameID, current, SpecialTarget{PlayerID: ids[1]}))
	snap = env.snapshot(t, gameID)
	assert.Equal(t, ids[1], got.PlayerID)
	assert.Nil(t, snap.Game.SpecialAction)
	assert.Equal(t, ids[1], snap.Game.CurrentPlayerID, "sabotage uses up the turn")
	assert.False(t, snap.Players[current].Passed)
	assert.GreaterOrEqual(t, cards.IndexOf(snap.Game.DiscardPile, "sb"), 0)
}

func TestPlaySpecialCard_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	easyID, _ := env.started(t, cards.Easy, "Ada", "Bob")
	current := rigHand(t, env, easyID, 0, specialCard("ga", cards.RankGamble))
	assert.ErrorIs(t, env.svc.PlaySpecialCard(ctx, easyID, current, "ga"), matcherrors.ErrInvalidSpecial)

	gameID, _ := env.lobby(t, "Cy", "Dee")
	require.NoError(t, env.svc.SetGameMode(ctx, gameID, env.snapshot(t, gameID).Game.CreatorID, "special"))
	require.NoError(t, env.svc.StartGame(ctx, gameID))
	current = rigHand(t, env, gameID, 0, specialCard("ga", cards.RankGamble), card("n7", cards.Seven))

	assert.ErrorIs(t, env.svc.PlaySpecialCard(ctx, gameID, current, "missing"), matcherrors.ErrCardNotInHand)
	assert.ErrorIs(t, env.svc.PlaySpecialCard(ctx, gameID, current, "n7"), matcherrors.ErrInvalidSpecial)
	assert.ErrorIs(t, env.svc.PlaySpecialCard(ctx, gameID, current, "ga"), matcherrors.ErrInvalidSpecial, "no card registered for GA")
	assert.ErrorIs(t, env.svc.ResolveSpecialCard(ctx, gameID, current, SpecialTarget{}), matcherrors.ErrWrongPhase)
	assert.ErrorIs(t, env.svc.EndSpecialAction(ctx, gameID, current), matcherrors.ErrWrongPhase)
}
