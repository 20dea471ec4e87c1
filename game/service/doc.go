// Package service provides the business logic layer for Chopsticks sessions.
//
// The service package implements:
//   - Starting a game on behalf of an identity
//   - Joining an awaiting game as the second player
//   - Applying moves through the engine under per-session serialization
//   - Snapshots of game state for transports
//   - Retention sweeps of finished games
//
// Core Interfaces:
//
// GameService is the main service interface used by the REST, WebSocket and
// MCP transports. Notifier receives a GameState after every successful join or
// move; the websocket hub implements it.
//
// Architecture:
//
// The service layer sits between the transport layer and the game engine. It
// holds no game rules of its own: every mutation runs inside session.Store
// WithMut, which loads a copy, lets the engine validate and apply the change, and
// persists only on success. Engine and storage errors are translated into
// *Error values carrying a stable Code.
//
// Usage:
//
//	store := session.NewMemoryStore()
//	svc := service.NewGameService(store, service.WithLogger(logger))
//
//	id, err := svc.StartGame(ctx, "alice")
//	if err != nil {
//		log.Fatal(err)
//	}
//	_, err = svc.JoinGame(ctx, "bob", id)
//	state, err := svc.MakeMove(ctx, "alice", id, "left", "right")
//
// Error Codes:
//
// session_not_found, not_joinable, not_in_progress, not_your_turn,
// empty_source_slot, invalid_slot, unauthenticated and internal. Storage
// failures always surface as internal and are logged at error level.
package service
