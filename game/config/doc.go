// Package config loads server settings for the Chopsticks service.
//
// Settings come from environment variables, optionally seeded from a .env file
// in the working directory. Command-line flags in package main override them.
//
// Variables:
//   - CHOPSTICKS_HTTP_ADDR: listen address (default localhost:8080)
//   - CHOPSTICKS_STORE_DRIVER: memory, file, sqlite or bolt (default memory)
//   - CHOPSTICKS_STORE_PATH: directory (file) or database path (sqlite, bolt)
//   - CHOPSTICKS_CONTAINER: top-level container name (default chopsticks_game_service)
//   - CHOPSTICKS_JWT_SECRET: enables bearer token identities when set
//   - CHOPSTICKS_REJECT_SELF_JOIN: refuse creators taking the second seat
//   - CHOPSTICKS_RETENTION, CHOPSTICKS_SWEEP_INTERVAL: finished game retention
//   - CHOPSTICKS_LOG_LEVEL: debug, info, warn or error
//   - NGROK_ENABLED, NGROK_AUTHTOKEN, NGROK_DOMAIN: public tunnel
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
