// Package api provides the HTTP REST API for Chopsticks game sessions.
//
// Endpoints:
//
//   - POST /api/games - Start a game seated by the caller
//   - GET /api/games - List games the caller is seated in
//   - GET /api/games/{id} - Get a game snapshot
//   - POST /api/games/{id}/join - Join as player two
//   - POST /api/games/{id}/move - Tap {"source":"left","target":"right"}
//   - GET /ws?session={id} - Subscribe a seated player to state updates
//   - POST /mcp - MCP JSON-RPC, when a handler is mounted
//   - GET /healthz - Liveness check
//
// Callers are identified by the identity middleware: an X-Player-ID header by
// default, or a bearer token when a JWT resolver is configured.
//
// Errors are returned as JSON with a stable code:
//
//	{
//	  "error": "not your turn",
//	  "code": "not_your_turn"
//	}
//
// session_not_found maps to 404, not_joinable and not_in_progress to 409,
// not_your_turn to 403, invalid_slot and empty_source_slot to 422, and
// unauthenticated to 401.
package api
