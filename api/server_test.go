package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
	"github.com/wricardo/mcp-training/chopsticks/identity"
	"github.com/wricardo/mcp-training/chopsticks/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	StartGameFunc    func(ctx context.Context, caller string) (string, error)
	JoinGameFunc     func(ctx context.Context, caller, sessionID string) (*service.GameState, error)
	MakeMoveFunc     func(ctx context.Context, caller, sessionID, source, target string) (*service.GameState, error)
	GetGameStateFunc func(ctx context.Context, sessionID string) (*service.GameState, error)
	ListGamesFunc    func(ctx context.Context, caller string) ([]*service.GameState, error)
	SweepFunc        func(ctx context.Context, retention time.Duration) (int, error)
}

func (m *MockGameService) StartGame(ctx context.Context, caller string) (string, error) {
	if m.StartGameFunc != nil {
		return m.StartGameFunc(ctx, caller)
	}
	return "test-session", nil
}

func (m *MockGameService) JoinGame(ctx context.Context, caller, sessionID string) (*service.GameState, error) {
	if m.JoinGameFunc != nil {
		return m.JoinGameFunc(ctx, caller, sessionID)
	}
	return testState(sessionID, "in_progress"), nil
}

func (m *MockGameService) MakeMove(ctx context.Context, caller, sessionID, source, target string) (*service.GameState, error) {
	if m.MakeMoveFunc != nil {
		return m.MakeMoveFunc(ctx, caller, sessionID, source, target)
	}
	return testState(sessionID, "in_progress"), nil
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*service.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return testState(sessionID, "in_progress"), nil
}

func (m *MockGameService) ListGames(ctx context.Context, caller string) ([]*service.GameState, error) {
	if m.ListGamesFunc != nil {
		return m.ListGamesFunc(ctx, caller)
	}
	return []*service.GameState{}, nil
}

func (m *MockGameService) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	if m.SweepFunc != nil {
		return m.SweepFunc(ctx, retention)
	}
	return 0, nil
}

// Test helpers
func testState(sessionID, status string) *service.GameState {
	return &service.GameState{
		SessionID:  sessionID,
		Status:     status,
		ActiveTurn: engine.PlayerOne,
		PlayerOne:  &service.PlayerState{Identity: "alice", Seat: engine.PlayerOne, Left: 1, Right: 1},
		PlayerTwo:  &service.PlayerState{Identity: "bob", Seat: engine.PlayerTwo, Left: 1, Right: 1},
	}
}

func serviceError(code service.Code, msg string) error {
	return &service.Error{Code: code, Message: msg}
}

func setupTestServer(t *testing.T, svc service.GameService) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub(zerolog.Nop())
	go hub.Run(ctx)
	return NewServer(svc, hub)
}

func makeRequest(method, path, player string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if player != "" {
		req.Header.Set(identity.HeaderPlayerID, player)
	}
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, code string) {
	t.Helper()
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["code"] != code {
		t.Errorf("Expected error code %s, got %s (%s)", code, resp["code"], resp["error"])
	}
}

func TestStartGame(t *testing.T) {
	tests := []struct {
		name           string
		player         string
		setupMock      func(*MockGameService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "Start game as identified caller",
			player: "alice",
			setupMock: func(m *MockGameService) {
				m.StartGameFunc = func(ctx context.Context, caller string) (string, error) {
					if caller != "alice" {
						t.Errorf("Expected caller alice, got %q", caller)
					}
					return "sess-123", nil
				}
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Anonymous caller",
			setupMock: func(m *MockGameService) {
				m.StartGameFunc = func(ctx context.Context, caller string) (string, error) {
					return "", serviceError(service.CodeUnauthenticated, "caller identity required")
				}
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthenticated",
		},
		{
			name:   "Unclassified error is hidden",
			player: "alice",
			setupMock: func(m *MockGameService) {
				m.StartGameFunc = func(ctx context.Context, caller string) (string, error) {
					return "", fmt.Errorf("disk on fire")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/games", tt.player, nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				assertErrorCode(t, w, tt.expectedCode)
				if strings.Contains(w.Body.String(), "disk on fire") {
					t.Error("Internal error details leaked to the client")
				}
				return
			}

			var resp map[string]string
			parseResponse(t, w, &resp)
			if resp["session_id"] != "sess-123" {
				t.Errorf("Expected session_id sess-123, got %s", resp["session_id"])
			}
			if w.Header().Get("Location") != "/api/games/sess-123" {
				t.Errorf("Unexpected Location header %q", w.Header().Get("Location"))
			}
		})
	}
}

func TestJoinGame(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Join succeeds", nil, http.StatusOK, ""},
		{"Missing session", serviceError(service.CodeSessionNotFound, "session not found: x"), http.StatusNotFound, "session_not_found"},
		{"Game already full", serviceError(service.CodeNotJoinable, "game is not accepting players"), http.StatusConflict, "not_joinable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCaller, gotSession string
			mockService := &MockGameService{
				JoinGameFunc: func(ctx context.Context, caller, sessionID string) (*service.GameState, error) {
					gotCaller, gotSession = caller, sessionID
					if tt.err != nil {
						return nil, tt.err
					}
					return testState(sessionID, "in_progress"), nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/games/sess-1/join", "bob", nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if gotCaller != "bob" || gotSession != "sess-1" {
				t.Errorf("Service called with caller=%q session=%q", gotCaller, gotSession)
			}
			if tt.expectedCode != "" {
				assertErrorCode(t, w, tt.expectedCode)
				return
			}

			var state service.GameState
			parseResponse(t, w, &state)
			if state.Status != "in_progress" {
				t.Errorf("Expected in_progress, got %s", state.Status)
			}
		})
	}
}

func TestMakeMove(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Valid move", `{"source":"left","target":"right"}`, nil, http.StatusOK, ""},
		{"Malformed body", `{"source":`, nil, http.StatusBadRequest, "bad_request"},
		{"Not your turn", `{"source":"left","target":"left"}`, serviceError(service.CodeNotYourTurn, "not your turn"), http.StatusForbidden, "not_your_turn"},
		{"Empty source", `{"source":"left","target":"left"}`, serviceError(service.CodeEmptySourceSlot, "source slot is empty"), http.StatusUnprocessableEntity, "empty_source_slot"},
		{"Invalid slot", `{"source":"thumb","target":"left"}`, serviceError(service.CodeInvalidSlot, "invalid slot"), http.StatusUnprocessableEntity, "invalid_slot"},
		{"Finished game", `{"source":"left","target":"left"}`, serviceError(service.CodeNotInProgress, "game is not in progress"), http.StatusConflict, "not_in_progress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mockService := &MockGameService{
				MakeMoveFunc: func(ctx context.Context, caller, sessionID, source, target string) (*service.GameState, error) {
					called = true
					if tt.err != nil {
						return nil, tt.err
					}
					if source != "left" || target != "right" {
						t.Errorf("Expected left->right, got %s->%s", source, target)
					}
					return testState(sessionID, "in_progress"), nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/games/sess-1/move", strings.NewReader(tt.body))
			req.Header.Set(identity.HeaderPlayerID, "alice")
			server.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode == "bad_request" && called {
				t.Error("Service should not be called for a malformed body")
			}
			if tt.expectedCode != "" {
				assertErrorCode(t, w, tt.expectedCode)
			}
		})
	}
}

func TestGetGameState(t *testing.T) {
	mockService := &MockGameService{
		GetGameStateFunc: func(ctx context.Context, sessionID string) (*service.GameState, error) {
			if sessionID == "missing" {
				return nil, serviceError(service.CodeSessionNotFound, "session not found: missing")
			}
			return testState(sessionID, "in_progress"), nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/games/sess-1", "", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var state service.GameState
	parseResponse(t, w, &state)
	if state.SessionID != "sess-1" || state.PlayerTwo.Identity != "bob" {
		t.Errorf("Unexpected state %+v", state)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/games/missing", "", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	assertErrorCode(t, w, "session_not_found")
}

func TestListGames(t *testing.T) {
	mockService := &MockGameService{
		ListGamesFunc: func(ctx context.Context, caller string) ([]*service.GameState, error) {
			if caller != "alice" {
				t.Errorf("Expected caller alice, got %q", caller)
			}
			return []*service.GameState{testState("a", "in_progress"), testState("b", "finished")}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/games", "alice", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Count int                  `json:"count"`
		Games []*service.GameState `json:"games"`
	}
	parseResponse(t, w, &resp)
	if resp.Count != 2 || len(resp.Games) != 2 {
		t.Errorf("Expected 2 games, got count=%d len=%d", resp.Count, len(resp.Games))
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/healthz", "", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestInvalidToken(t *testing.T) {
	secret := []byte("test-secret")
	mockService := &MockGameService{
		StartGameFunc: func(ctx context.Context, caller string) (string, error) {
			t.Error("Service should not be reached with a bad token")
			return "", nil
		},
	}
	server := NewServer(mockService, nil, WithResolver(identity.NewJWTResolver(secret)))

	w := httptest.NewRecorder()
	req := makeRequest("POST", "/api/games", "", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	server.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestMCPHandlerMount(t *testing.T) {
	called := false
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	server := NewServer(&MockGameService{}, nil, WithMCPHandler(mcp))

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/mcp", "", map[string]string{"jsonrpc": "2.0"}))
	if !called || w.Code != http.StatusAccepted {
		t.Errorf("Expected MCP handler to serve POST /mcp, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	NewServer(&MockGameService{}, nil).ServeHTTP(w, makeRequest("POST", "/mcp", "", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an MCP handler, got %d", w.Code)
	}
}

func TestWebSocket(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    string
		player         string
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{
			name:           "Missing session parameter",
			player:         "alice",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Anonymous caller",
			queryParams:    "?session=sess-1",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:        "Invalid session",
			queryParams: "?session=invalid",
			player:      "alice",
			setupMock: func(m *MockGameService) {
				m.GetGameStateFunc = func(ctx context.Context, sessionID string) (*service.GameState, error) {
					return nil, serviceError(service.CodeSessionNotFound, "session not found: invalid")
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Spectator is refused",
			queryParams:    "?session=sess-1",
			player:         "mallory",
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/ws"+tt.queryParams, tt.player, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestWebSocketDisabled(t *testing.T) {
	server := NewServer(&MockGameService{}, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws?session=sess-1", "alice", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

// Integration: real service, memory store and hub behind an httptest server

type testClient struct {
	t       *testing.T
	baseURL string
	player  string
}

func (c testClient) do(method, path string, body interface{}, target interface{}) int {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set(identity.HeaderPlayerID, c.player)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			c.t.Fatalf("Failed to decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func newIntegrationServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub(zerolog.Nop())
	go hub.Run(ctx)

	svc := service.NewGameService(session.NewMemoryStore(),
		service.WithNotifier(hub),
		service.WithGameOptions(
			engine.WithIDGenerator(func() string { return "g1" }),
			engine.WithCoin(func() bool { return true }),
		),
	)

	ts := httptest.NewServer(NewServer(svc, hub))
	t.Cleanup(ts.Close)
	return ts
}

func readState(t *testing.T, conn *gorillaws.Conn) *service.GameState {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg websocket.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read websocket message: %v", err)
	}
	if msg.Event != websocket.EventStateUpdate {
		t.Fatalf("Unexpected event %q", msg.Event)
	}
	return msg.GameState
}

func TestIntegration_FullGame(t *testing.T) {
	ts := newIntegrationServer(t)
	alice := testClient{t: t, baseURL: ts.URL, player: "alice"}
	bob := testClient{t: t, baseURL: ts.URL, player: "bob"}

	var created map[string]string
	if status := alice.do("POST", "/api/games", nil, &created); status != http.StatusCreated {
		t.Fatalf("Start game: status %d", status)
	}
	id := created["session_id"]

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + id
	header := http.Header{}
	header.Set(identity.HeaderPlayerID, "alice")
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to connect websocket: %v", err)
	}
	defer conn.Close()

	if state := readState(t, conn); state.Status != "awaiting_opponent" {
		t.Errorf("Expected initial awaiting_opponent, got %s", state.Status)
	}

	var state service.GameState
	if status := bob.do("POST", "/api/games/"+id+"/join", nil, &state); status != http.StatusOK {
		t.Fatalf("Join: status %d", status)
	}
	if pushed := readState(t, conn); pushed.Status != "in_progress" || pushed.PlayerTwo.Identity != "bob" {
		t.Errorf("Expected pushed in_progress with bob seated, got %+v", pushed)
	}

	var errResp map[string]string
	if status := bob.do("POST", "/api/games/"+id+"/move", MoveRequest{"left", "left"}, &errResp); status != http.StatusForbidden {
		t.Errorf("Out-of-turn move: expected 403, got %d", status)
	}

	moves := []struct {
		player         testClient
		source, target string
	}{
		{alice, "left", "left"},
		{bob, "left", "left"},
		{alice, "left", "left"},
		{bob, "right", "right"},
		{alice, "right", "right"},
		{bob, "right", "left"},
		{alice, "right", "right"},
	}
	for i, m := range moves {
		if status := m.player.do("POST", "/api/games/"+id+"/move", MoveRequest{m.source, m.target}, &state); status != http.StatusOK {
			t.Fatalf("Move %d by %s: status %d", i+1, m.player.player, status)
		}
		readState(t, conn)
	}

	if state.Status != "finished" || state.Winner != "alice" {
		t.Fatalf("Expected alice to win, got %+v", state)
	}

	if status := bob.do("POST", "/api/games/"+id+"/move", MoveRequest{"left", "right"}, &errResp); status != http.StatusConflict {
		t.Errorf("Move after finish: expected 409, got %d", status)
	}
	if errResp["code"] != "not_in_progress" {
		t.Errorf("Expected not_in_progress, got %s", errResp["code"])
	}

	var listed struct {
		Count int `json:"count"`
	}
	carol := testClient{t: t, baseURL: ts.URL, player: "carol"}
	carol.do("GET", "/api/games", nil, &listed)
	if listed.Count != 0 {
		t.Errorf("Carol should see no games, got %d", listed.Count)
	}
	alice.do("GET", "/api/games", nil, &listed)
	if listed.Count != 1 {
		t.Errorf("Alice should see 1 game, got %d", listed.Count)
	}
}
