// Package session provides storage for Chopsticks game sessions.
//
// The session package implements:
//   - A Store interface keyed by session id
//   - All-or-nothing mutation of a single session (WithMut)
//   - In-memory, JSON file, SQLite and bbolt backends
//   - Bounded-size encoding with invariant checks on decode
//   - Retention sweeps for finished games
//
// Containers:
//
// Every backend keeps its games under one named container (DefaultContainer is
// "chopsticks_game_service"), so a whole collection can be persisted or restored
// as one unit. FileStore writes the container as a single JSON document, BoltStore
// uses one bucket, and SQLiteStore keys rows by container and session id.
//
// Concurrency:
//
// WithMut calls for the same session never interleave. MemoryStore locks per
// entry; FileStore and SQLiteStore hold a store-wide writer lock; BoltStore relies
// on bbolt's single write transaction. A mutation function that returns an error
// leaves the stored record byte-for-byte unchanged.
//
// Usage:
//
//	store, err := session.Open(session.Options{Driver: "bolt", Path: "data/games.db"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.WithMut(ctx, id, func(g *engine.Game) error {
//		return g.Join("bob")
//	})
package session
