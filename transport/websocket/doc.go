// Package websocket pushes Chopsticks state updates to connected players.
//
// The package uses a hub-and-spoke model where a central Hub owns every
// connection. Each client connection runs a read pump and a write pump; the hub
// goroutine alone mutates the subscription map.
//
// Message Protocol:
//
// Messages are JSON objects of the form
//
//	{"event": "state_update", "session_id": "...", "game_state": {...}}
//
// A snapshot is sent when the connection opens and after every successful join
// or move. Only identities seated in the game receive updates; spectating is not
// supported. Clients send nothing; incoming frames only keep the connection
// alive.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	svc := service.NewGameService(store, service.WithNotifier(hub))
//	hub.ServeWS(w, r, sessionID, player, initialState)
package websocket
