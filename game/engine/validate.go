package engine

import "fmt"

// Validate checks the structural invariants of a game. It is applied to
// records restored from storage before they reach the state machine.
func (g *Game) Validate() error {
	if g.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidGame)
	}
	if g.PlayerOne == nil {
		return fmt.Errorf("%w: missing player one", ErrInvalidGame)
	}
	if g.ActiveTurn != PlayerOne && g.ActiveTurn != PlayerTwo {
		return fmt.Errorf("%w: unknown active turn %d", ErrInvalidGame, int(g.ActiveTurn))
	}
	if g.MoveCount < 0 {
		return fmt.Errorf("%w: negative move count", ErrInvalidGame)
	}

	for _, p := range []*Player{g.PlayerOne, g.PlayerTwo} {
		if p == nil {
			continue
		}
		if err := validatePlayer(p); err != nil {
			return err
		}
	}

	switch ph := g.Phase.(type) {
	case AwaitingOpponent:
		if g.PlayerTwo != nil {
			return fmt.Errorf("%w: player two seated while awaiting opponent", ErrInvalidGame)
		}
	case InProgress:
		if g.PlayerTwo == nil {
			return fmt.Errorf("%w: in progress without player two", ErrInvalidGame)
		}
		if g.PlayerOne.Eliminated() || g.PlayerTwo.Eliminated() {
			return fmt.Errorf("%w: in progress with an eliminated player", ErrInvalidGame)
		}
	case Finished:
		if g.PlayerTwo == nil {
			return fmt.Errorf("%w: finished without player two", ErrInvalidGame)
		}
		seat, ok := g.SeatOf(ph.Winner)
		if !ok {
			return fmt.Errorf("%w: winner %q is not seated", ErrInvalidGame, ph.Winner)
		}
		if seat != g.ActiveTurn {
			return fmt.Errorf("%w: winner does not hold the final turn", ErrInvalidGame)
		}
		if !g.Player(seat.Other()).Eliminated() {
			return fmt.Errorf("%w: winner's opponent still has values", ErrInvalidGame)
		}
	case nil:
		return fmt.Errorf("%w: missing phase", ErrInvalidGame)
	default:
		return fmt.Errorf("%w: unknown phase %T", ErrInvalidGame, ph)
	}
	return nil
}

func validatePlayer(p *Player) error {
	if p.Identity == "" {
		return fmt.Errorf("%w: player without identity", ErrInvalidGame)
	}
	for _, v := range []int{p.Left, p.Right} {
		if v < 0 || v >= EliminationThreshold {
			return fmt.Errorf("%w: slot value %d out of range for %s", ErrInvalidGame, v, p.Identity)
		}
	}
	return nil
}
