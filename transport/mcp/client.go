package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
	"github.com/wricardo/mcp-training/chopsticks/identity"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	player     string
	token      string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithPlayer sets the identity sent when the request context carries none
func WithPlayer(player string) ClientOption {
	return func(c *Client) { c.player = player }
}

// WithToken sends a bearer token instead of the X-Player-ID header
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the HTTP client used for API calls
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Chopsticks",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Chopsticks - MCP Interface

This is a thin client that proxies all requests to the REST API server.
Every call acts as the configured player identity.

GAME OBJECTIVE:
Each player has two hands (left and right) starting at 1. On your turn, add the value of one of
your hands to one of your opponent's hands. A hand reaching 5 or more resets to 0. You win when
both of your opponent's hands are 0.

AVAILABLE TOOLS:
- start_game: Create a game and take the first seat
- join_game: Take the second seat of an awaiting game
- make_move: Play one move (source = your hand, target = opponent's hand)
- game_state: Get the state of a game
- list_games: List games you are seated in
- game_rules: Get the full rules`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	sessionID := map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Create a new game. You take the first seat and wait for an opponent.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join a game that is waiting for an opponent",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
			},
			Required: []string{"session_id"},
		},
	}, c.handleJoinGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "make_move",
		Description: "Add the value of one of your hands to one of your opponent's hands",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
				"source": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"left", "right"},
					"description": "Your hand to play from (must not be 0)",
				},
				"target": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"left", "right"},
					"description": "Opponent hand to add to",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "source", "target"},
		},
	}, c.handleMakeMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current state of a game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionID,
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List the games you are seated in",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the complete rules of Chopsticks as played on this server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves MCP JSON-RPC messages posted to it
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ctx := r.Context()
		if authz := r.Header.Get("Authorization"); authz != "" {
			ctx = context.WithValue(ctx, authorizationKey{}, authz)
		}

		response := c.mcpServer.HandleMessage(ctx, body)
		if response == nil {
			// Notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
}

// authorizationKey carries the Authorization header of an HTTP MCP request
type authorizationKey struct{}

// apiError is the REST error body
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// caller returns the identity a tool call acts as
func (c *Client) caller(ctx context.Context) string {
	if id, ok := identity.FromContext(ctx); ok {
		return id
	}
	return c.player
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if player := c.caller(ctx); player != "" {
		req.Header.Set(identity.HeaderPlayerID, player)
	}
	if authz, ok := ctx.Value(authorizationKey{}).(string); ok {
		req.Header.Set("Authorization", authz)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp apiError
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			if errResp.Code != "" {
				return fmt.Errorf("%s (%s)", errResp.Error, errResp.Code)
			}
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func gamePath(sessionID string, suffix string) string {
	return "/api/games/" + url.PathEscape(sessionID) + suffix
}

func stringArg(request mcp.CallToolRequest, name string) string {
	args, _ := request.Params.Arguments.(map[string]interface{})
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}

func requireArg(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v := stringArg(request, name)
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("%s is required", name))
	}
	return v, nil
}

// Tool handlers

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := c.apiCall(ctx, "POST", "/api/games", nil, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created game: %s\nYou are player_one. Share the session id with your opponent and wait for them to join.\n", created.SessionID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireArg(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}

	var state service.GameState
	if err := c.apiCall(ctx, "POST", gamePath(sessionID, "/join"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Joined game.\n" + formatGameState(&state, c.caller(ctx))), nil
}

func (c *Client) handleMakeMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireArg(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}
	source, errResult := requireArg(request, "source")
	if errResult != nil {
		return errResult, nil
	}
	target, errResult := requireArg(request, "target")
	if errResult != nil {
		return errResult, nil
	}

	body := map[string]string{"source": source, "target": target}
	var state service.GameState
	if err := c.apiCall(ctx, "POST", gamePath(sessionID, "/move"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✓ Played %s → opponent's %s\n", source, target)
	if intent := stringArg(request, "intent"); intent != "" {
		fmt.Fprintf(&sb, "Intent: %s\n", intent)
	}
	sb.WriteString(formatGameState(&state, c.caller(ctx)))
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, errResult := requireArg(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}

	var state service.GameState
	if err := c.apiCall(ctx, "GET", gamePath(sessionID, ""), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state, c.caller(ctx))), nil
}

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Count int                  `json:"count"`
		Games []*service.GameState `json:"games"`
	}
	if err := c.apiCall(ctx, "GET", "/api/games", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Games) == 0 {
		return mcp.NewToolResultText("You are not seated in any games.\n"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games (%d):\n", len(resp.Games))
	for _, g := range resp.Games {
		fmt.Fprintf(&sb, "- %s: %s", g.SessionID, g.Status)
		switch {
		case g.Winner != "":
			fmt.Fprintf(&sb, " (winner: %s)", g.Winner)
		case g.ActivePlayer != "":
			fmt.Fprintf(&sb, " (turn: %s)", g.ActivePlayer)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameRules), nil
}

const gameRules = `CHOPSTICKS RULES

SETUP:
- Two players, each with two hands: left and right.
- Every hand starts with the value 1.
- The first player to move is chosen at random when the game is created.

YOUR TURN:
- Pick one of YOUR hands with a value greater than 0 (the source).
- Pick one of your OPPONENT's hands (the target).
- The target becomes target + source. Your source hand does not change.
- If the result is 5 or more, the target hand resets to 0.

WINNING:
- When both of your opponent's hands are 0 after your move, you win.
- The game ends immediately; no further moves are accepted.

ERRORS:
- not_your_turn: it is the other player's move, or you are not seated
- empty_source_slot: the hand you played from is 0
- not_in_progress: the game is waiting for an opponent or already finished
- not_joinable: the game already has two players
- invalid_slot: use "left" or "right"

TIPS:
- A hand at 0 cannot be played from; protect your last hand.
- Pushing an opponent's hand to exactly 5 (or more) clears it.
`

// formatGameState renders a snapshot from viewer's point of view
func formatGameState(state *service.GameState, viewer string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Session: %s\n", state.SessionID)
	fmt.Fprintf(&sb, "Status: %s\n", state.Status)

	writePlayer := func(label string, p *service.PlayerState) {
		if p == nil {
			fmt.Fprintf(&sb, "%s: (waiting for opponent)\n", label)
			return
		}
		you := ""
		if p.Identity == viewer {
			you = " [you]"
		}
		fmt.Fprintf(&sb, "%s: %s%s  left=%d right=%d\n", label, p.Identity, you, p.Left, p.Right)
	}
	writePlayer("Player one", state.PlayerOne)
	writePlayer("Player two", state.PlayerTwo)
	fmt.Fprintf(&sb, "Moves played: %d\n", state.MoveCount)

	switch {
	case state.Winner != "":
		if state.Winner == viewer {
			sb.WriteString("🎉 VICTORY! You won.\n")
		} else {
			fmt.Fprintf(&sb, "Game over. Winner: %s\n", state.Winner)
		}
	case state.ActivePlayer != "":
		if state.ActivePlayer == viewer {
			sb.WriteString("➡ Your move.\n")
		} else {
			fmt.Fprintf(&sb, "Waiting for %s to move.\n", state.ActivePlayer)
		}
	}
	return sb.String()
}
