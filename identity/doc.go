// Package identity resolves the player behind an HTTP request.
//
// Two resolvers are provided. HeaderResolver trusts the X-Player-ID header (or a
// "player" query parameter) and suits development and trusted proxies.
// JWTResolver verifies HS256 bearer tokens minted by IssueToken and uses the sub
// claim. Chain combines them; Middleware stores the result for FromContext.
package identity
