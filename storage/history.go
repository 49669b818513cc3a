package storage

import (
	"time"

	"equation-game-server/cards"
	"equation-game-server/game"
)

// ResultPlayer is one player's line in a finished game.
type ResultPlayer struct {
	Position   int    `json:"position"`
	UserID     string `json:"user_id,omitempty"`
	Name       string `json:"name"`
	TotalScore int    `json:"total_score"`
	Winner     bool   `json:"winner"`
}

// GameRecord is a single finished game returned for the history API.
type GameRecord struct {
	GameID    string         `json:"game_id"`
	PlayedAt  string         `json:"played_at"` // ISO8601
	Mode      cards.Mode     `json:"mode"`
	Rounds    int            `json:"rounds"`
	Players   []ResultPlayer `json:"players"`
	YourIndex *int           `json:"your_index"` // position of the requesting user; set by ListByUserID
}

// resultPlayers lists the players of a finished game in join order.
// Winners are the holders of the highest total; nobody wins a game where every total is 0.
func resultPlayers(snap *game.Snapshot) []ResultPlayer {
	best := 0
	for _, p := range snap.Players {
		if p.TotalScore > best {
			best = p.TotalScore
		}
	}
	out := make([]ResultPlayer, 0, len(snap.Players))
	for i, p := range snap.Ordered() {
		out = append(out, ResultPlayer{
			Position:   i,
			UserID:     p.UserID,
			Name:       p.Name,
			TotalScore: p.TotalScore,
			Winner:     best > 0 && p.TotalScore == best,
		})
	}
	return out
}

// setYourIndex marks the requesting user's position on each record.
func setYourIndex(records []GameRecord, userID string) {
	for i := range records {
		for _, p := range records[i].Players {
			if p.UserID == userID {
				pos := p.Position
				records[i].YourIndex = &pos
				break
			}
		}
	}
}

// appendResultRow folds one joined row into records. Rows of the same game must be adjacent.
func appendResultRow(records []GameRecord, gameID string, finishedAt time.Time, mode string, rounds int, p ResultPlayer) []GameRecord {
	if n := len(records); n == 0 || records[n-1].GameID != gameID {
		records = append(records, GameRecord{
			GameID:   gameID,
			PlayedAt: finishedAt.UTC().Format(time.RFC3339),
			Mode:     cards.Mode(mode),
			Rounds:   rounds,
		})
	}
	last := &records[len(records)-1]
	last.Players = append(last.Players, p)
	return records
}
