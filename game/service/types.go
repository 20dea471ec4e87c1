package service

import (
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
)

// PlayerState is the public view of one seated player
type PlayerState struct {
	Identity   string      `json:"identity"`
	Seat       engine.Seat `json:"seat"`
	Left       int         `json:"left"`
	Right      int         `json:"right"`
	SessionRef *string     `json:"session_ref,omitempty"`
}

// GameState is a read-only snapshot of a game returned to transports
type GameState struct {
	SessionID    string       `json:"session_id"`
	Status       string       `json:"status"`
	Winner       string       `json:"winner,omitempty"`
	ActiveTurn   engine.Seat  `json:"active_turn"`
	ActivePlayer string       `json:"active_player,omitempty"`
	PlayerOne    *PlayerState `json:"player_one"`
	PlayerTwo    *PlayerState `json:"player_two,omitempty"`
	MoveCount    int          `json:"move_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Snapshot builds the public view of g
func Snapshot(g *engine.Game) *GameState {
	state := &GameState{
		SessionID:  g.SessionID,
		Status:     g.Phase.String(),
		ActiveTurn: g.ActiveTurn,
		PlayerOne:  playerState(g.PlayerOne, engine.PlayerOne),
		PlayerTwo:  playerState(g.PlayerTwo, engine.PlayerTwo),
		MoveCount:  g.MoveCount,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}

	switch ph := g.Phase.(type) {
	case engine.Finished:
		state.Winner = ph.Winner
	case engine.InProgress:
		if p := g.Player(g.ActiveTurn); p != nil {
			state.ActivePlayer = p.Identity
		}
	case engine.AwaitingOpponent:
	}
	return state
}

func playerState(p *engine.Player, seat engine.Seat) *PlayerState {
	if p == nil {
		return nil
	}
	ps := &PlayerState{
		Identity: p.Identity,
		Seat:     seat,
		Left:     p.Left,
		Right:    p.Right,
	}
	if p.SessionRef != nil {
		ref := *p.SessionRef
		ps.SessionRef = &ref
	}
	return ps
}

// IsSeated reports whether identity occupies either seat
func (s *GameState) IsSeated(identity string) bool {
	if identity == "" {
		return false
	}
	if s.PlayerOne != nil && s.PlayerOne.Identity == identity {
		return true
	}
	return s.PlayerTwo != nil && s.PlayerTwo.Identity == identity
}
