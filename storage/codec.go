package storage

import (
	"encoding/json"
	"fmt"

	"equation-game-server/game"
)

// playerRow is one row of game_players.
type playerRow struct {
	ID       string
	Position int
	Data     []byte
}

// encodeSnapshot splits a snapshot into the games row state and the
// game_players rows. Players are stored in join order.
func encodeSnapshot(snap *game.Snapshot) ([]byte, []playerRow, error) {
	state, err := json.Marshal(snap.Game)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding game %s: %w", snap.Game.ID, err)
	}
	rows := make([]playerRow, 0, len(snap.Players))
	for i, p := range snap.Ordered() {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding player %s: %w", p.ID, err)
		}
		rows = append(rows, playerRow{ID: p.ID, Position: i, Data: data})
	}
	return state, rows, nil
}

// decodeSnapshot rebuilds a snapshot. The version column wins over the
// version embedded in state.
func decodeSnapshot(version int64, state []byte, players [][]byte) (*game.Snapshot, error) {
	var g game.Game
	if err := json.Unmarshal(state, &g); err != nil {
		return nil, fmt.Errorf("decoding game: %w", err)
	}
	g.Version = version
	snap := &game.Snapshot{Game: &g, Players: make(map[string]*game.Player, len(players))}
	for _, data := range players {
		var p game.Player
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding player of game %s: %w", g.ID, err)
		}
		snap.Players[p.ID] = &p
	}
	return snap, nil
}
