// Command bruteforcer plays complete games against a running server with two
// bot players, exercising start, join, move and the error paths under load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/service"
	"github.com/wricardo/mcp-training/chopsticks/identity"
)

// MoveRequest is the body of a move call
type MoveRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Client talks to the REST API as one player
type Client struct {
	baseURL string
	player  string
	client  *http.Client
}

func NewClient(baseURL, player string) *Client {
	return &Client{
		baseURL: baseURL,
		player:  player,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderPlayerID, c.player)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) StartGame(ctx context.Context) (string, error) {
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, "POST", "/api/games", nil, &created); err != nil {
		return "", err
	}
	return created.SessionID, nil
}

func (c *Client) JoinGame(ctx context.Context, sessionID string) (*service.GameState, error) {
	var state service.GameState
	if err := c.do(ctx, "POST", "/api/games/"+sessionID+"/join", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Move(ctx context.Context, sessionID string, m Move) (*service.GameState, error) {
	var state service.GameState
	req := MoveRequest{Source: m.Source.String(), Target: m.Target.String()}
	if err := c.do(ctx, "POST", "/api/games/"+sessionID+"/move", req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Result is the outcome of one bot game
type Result struct {
	SessionID string
	Winner    string
	Moves     int
	Capped    bool
}

// playGame runs one game between the two clients until it finishes or maxMoves is reached
func playGame(ctx context.Context, one, two *Client, strategy *SystematicStrategy, maxMoves int, delay time.Duration) (Result, error) {
	sessionID, err := one.StartGame(ctx)
	if err != nil {
		return Result{}, err
	}
	state, err := two.JoinGame(ctx, sessionID)
	if err != nil {
		return Result{SessionID: sessionID}, err
	}

	players := map[string]*Client{one.player: one, two.player: two}
	for state.Status != "finished" {
		if state.MoveCount >= maxMoves {
			return Result{SessionID: sessionID, Moves: state.MoveCount, Capped: true}, nil
		}

		move, ok := strategy.NextMove(state)
		if !ok {
			return Result{SessionID: sessionID, Moves: state.MoveCount}, fmt.Errorf("no legal move in %s", state.Status)
		}
		mover, ok := players[state.ActivePlayer]
		if !ok {
			return Result{SessionID: sessionID}, fmt.Errorf("unknown active player %q", state.ActivePlayer)
		}

		state, err = mover.Move(ctx, sessionID, move)
		if err != nil {
			return Result{SessionID: sessionID}, err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	return Result{SessionID: sessionID, Winner: state.Winner, Moves: state.MoveCount}, nil
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Game server URL")
	games := flag.Int("games", 10, "Number of games to play")
	maxMoves := flag.Int("max-moves", 200, "Maximum moves per game before giving up")
	verbose := flag.Bool("v", false, "Verbose output")
	delayMs := flag.Int("delay", 0, "Delay between moves in milliseconds (0 = no delay)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}

	logger.Info().Str("url", *serverURL).Msg("connecting to game server")
	one := NewClient(*serverURL, "bot-one")
	two := NewClient(*serverURL, "bot-two")
	strategy := NewSystematicStrategy()

	ctx := context.Background()
	wins := map[string]int{}
	capped, failed, totalMoves := 0, 0, 0

	for i := 1; i <= *games; i++ {
		result, err := playGame(ctx, one, two, strategy, *maxMoves, time.Duration(*delayMs)*time.Millisecond)
		if err != nil {
			failed++
			logger.Error().Err(err).Int("game", i).Str("session_id", result.SessionID).Msg("game failed")
			continue
		}
		if result.Capped {
			capped++
			logger.Warn().Int("game", i).Str("session_id", result.SessionID).Int("moves", result.Moves).Msg("move cap reached")
			continue
		}

		wins[result.Winner]++
		totalMoves += result.Moves
		logger.Debug().Int("game", i).Str("session_id", result.SessionID).Str("winner", result.Winner).Int("moves", result.Moves).Msg("game finished")
	}

	finished := *games - capped - failed
	avg := 0.0
	if finished > 0 {
		avg = float64(totalMoves) / float64(finished)
	}
	logger.Info().
		Int("finished", finished).
		Int("capped", capped).
		Int("failed", failed).
		Int("bot_one_wins", wins[one.player]).
		Int("bot_two_wins", wins[two.player]).
		Float64("avg_moves", avg).
		Msg("run complete")

	if failed > 0 {
		os.Exit(1)
	}
}
