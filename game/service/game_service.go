package service

import (
	"context"
	"time"
)

// GameService defines all game-related operations. Every method that acts on
// behalf of a player takes the caller's resolved identity.
type GameService interface {
	// Session lifecycle
	StartGame(ctx context.Context, caller string) (string, error)
	JoinGame(ctx context.Context, caller, sessionID string) (*GameState, error)

	// Game operations
	MakeMove(ctx context.Context, caller, sessionID, source, target string) (*GameState, error)

	// Game state
	GetGameState(ctx context.Context, sessionID string) (*GameState, error)
	ListGames(ctx context.Context, caller string) ([]*GameState, error)

	// Retention
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}

// Notifier receives a snapshot after every successful join or move
type Notifier interface {
	Publish(state *GameState)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(state *GameState)

func (f NotifierFunc) Publish(state *GameState) { f(state) }
