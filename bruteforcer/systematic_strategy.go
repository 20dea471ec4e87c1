package main

import (
	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
)

// Move is one tap from the mover's source slot onto the opponent's target slot
type Move struct {
	Source engine.Slot
	Target engine.Slot
}

var statusInProgress = engine.InProgress{}.String()

var allMoves = []Move{
	{engine.Left, engine.Left},
	{engine.Left, engine.Right},
	{engine.Right, engine.Left},
	{engine.Right, engine.Right},
}

const (
	scoreWin       = 100
	scoreEliminate = 10
	scoreExposed   = -5
	scoreLose      = -100
)

// SystematicStrategy picks moves with a one-ply lookahead: win if possible,
// avoid handing the opponent a win, prefer eliminating a slot.
type SystematicStrategy struct{}

// NewSystematicStrategy returns a strategy
func NewSystematicStrategy() *SystematicStrategy {
	return &SystematicStrategy{}
}

// NextMove chooses a move for the active player of state. ok is false when
// the game is not in progress.
func (s *SystematicStrategy) NextMove(state *service.GameState) (Move, bool) {
	game, ok := gameFromState(state)
	if !ok {
		return Move{}, false
	}
	mover := game.Player(game.ActiveTurn).Identity

	best, bestScore, found := Move{}, 0, false
	for _, m := range legalMoves(game) {
		next := game.Clone()
		if err := next.ApplyMove(mover, m.Source, m.Target); err != nil {
			continue
		}
		score := s.score(game, next)
		if !found || score > bestScore {
			best, bestScore, found = m, score, true
		}
	}
	return best, found
}

// score rates the position after a move by the player who made it
func (s *SystematicStrategy) score(before, after *engine.Game) int {
	if after.IsFinished() {
		return scoreWin
	}

	seat := before.ActiveTurn
	score := 0
	if eliminated(after.Player(seat.Other())) > eliminated(before.Player(seat.Other())) {
		score += scoreEliminate
	}

	// Opponent's best reply
	opponent := after.Player(after.ActiveTurn).Identity
	mine := eliminated(after.Player(seat))
	exposed := false
	for _, reply := range legalMoves(after) {
		next := after.Clone()
		if err := next.ApplyMove(opponent, reply.Source, reply.Target); err != nil {
			continue
		}
		if next.IsFinished() {
			return score + scoreLose
		}
		if eliminated(next.Player(seat)) > mine {
			exposed = true
		}
	}
	if exposed {
		score += scoreExposed
	}
	return score
}

// legalMoves lists the moves the active player can make
func legalMoves(g *engine.Game) []Move {
	p := g.Player(g.ActiveTurn)
	moves := make([]Move, 0, len(allMoves))
	for _, m := range allMoves {
		if p.Value(m.Source) > 0 {
			moves = append(moves, m)
		}
	}
	return moves
}

func eliminated(p *engine.Player) int {
	n := 0
	if p.Left == 0 {
		n++
	}
	if p.Right == 0 {
		n++
	}
	return n
}

// gameFromState rebuilds an in-progress game from its public snapshot
func gameFromState(state *service.GameState) (*engine.Game, bool) {
	if state == nil || state.PlayerOne == nil || state.PlayerTwo == nil {
		return nil, false
	}
	if state.Status != statusInProgress {
		return nil, false
	}
	return &engine.Game{
		SessionID:  state.SessionID,
		PlayerOne:  &engine.Player{Identity: state.PlayerOne.Identity, Left: state.PlayerOne.Left, Right: state.PlayerOne.Right},
		PlayerTwo:  &engine.Player{Identity: state.PlayerTwo.Identity, Left: state.PlayerTwo.Left, Right: state.PlayerTwo.Right},
		Phase:      engine.InProgress{},
		ActiveTurn: state.ActiveTurn,
		MoveCount:  state.MoveCount,
	}, true
}
