// Package engine implements the Chopsticks game-session state machine.
//
// The engine package implements:
//   - Game creation with a random first seat
//   - The join protocol for the second player
//   - Move validation and value redistribution
//   - Win detection and turn alternation
//
// Core Types:
//
// Game is the aggregate root. It owns two Players, a Phase and the Seat whose turn
// it is. Phase is a closed sum type with exactly three implementations:
// AwaitingOpponent, InProgress and Finished. Code that inspects a phase uses a type
// switch over all three.
//
// Rules:
//
// Each player has two slots (Left and Right) starting at 1. On their turn a player
// picks one of their own non-empty slots and one of the opponent's slots; the
// opponent's slot receives the sum. A slot reaching EliminationThreshold (5) or more
// resets to 0. The mover wins when both opponent slots are 0, and the turn does not
// pass on the winning move.
//
// Atomicity:
//
// Join and ApplyMove validate every precondition before writing any field. A
// returned error guarantees the Game is unchanged.
//
// Usage:
//
//	g := engine.New("alice")
//	if err := g.Join("bob"); err != nil {
//		return err
//	}
//	err := g.ApplyMove("alice", engine.Left, engine.Right)
package engine
