// Package mcp exposes Chopsticks to AI agents over the Model Context Protocol.
//
// The mcp package implements:
//   - An MCP server whose tools proxy to the REST API
//   - Caller identity forwarding through the X-Player-ID header or a bearer token
//   - Text rendering of game state from the caller's point of view
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//   - start_game: Create a game and take the first seat
//   - join_game: Take the second seat of an awaiting game
//   - make_move: Play a source hand onto an opponent hand
//   - game_state: Show a game
//   - list_games: List the caller's games
//   - game_rules: Full rules text
//
// Identity:
//
// Over stdio every call acts as the player configured with WithPlayer. Over HTTP
// the identity resolved by the REST middleware for the /mcp request is forwarded,
// so each agent acts as itself.
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080", mcp.WithPlayer("alice"))
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	router.Handle("/mcp", client.HTTPHandler())
package mcp
