package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
)

// createAttempts bounds the retries StartGame makes on a session id collision
const createAttempts = 3

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	store         session.Store
	logger        zerolog.Logger
	notifier      Notifier
	rejectSelfJoin bool
	gameOptions   []engine.Option
	now           func() time.Time
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *gameServiceImpl) {
		s.logger = logger.With().Str("component", "game_service").Logger()
	}
}

// WithNotifier publishes state changes to n
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) { s.notifier = n }
}

// WithRejectSelfJoin refuses a creator joining their own game
func WithRejectSelfJoin(reject bool) Option {
	return func(s *gameServiceImpl) { s.rejectSelfJoin = reject }
}

// WithGameOptions passes options to engine.New for every started game
func WithGameOptions(opts ...engine.Option) Option {
	return func(s *gameServiceImpl) { s.gameOptions = append(s.gameOptions, opts...) }
}

// WithClock overrides the time source used for updated_at and sweeps
func WithClock(now func() time.Time) Option {
	return func(s *gameServiceImpl) { s.now = now }
}

// NewGameService creates a new game service instance
func NewGameService(store session.Store, opts ...Option) GameService {
	s := &gameServiceImpl{
		store:  store,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartGame creates a game seated by caller and returns its session id
func (s *gameServiceImpl) StartGame(ctx context.Context, caller string) (string, error) {
	if caller == "" {
		return "", translate(ErrUnauthenticated)
	}

	opts := append([]engine.Option{engine.WithClock(s.now)}, s.gameOptions...)
	for attempt := 1; attempt <= createAttempts; attempt++ {
		g := engine.New(caller, opts...)
		err := s.store.Create(ctx, g)
		if err == nil {
			s.logger.Info().
				Str("session_id", g.SessionID).
				Str("player", caller).
				Str("first_turn", g.ActiveTurn.String()).
				Msg("game started")
			return g.SessionID, nil
		}
		if !errors.Is(err, session.ErrDuplicateSession) {
			s.logger.Error().Err(err).Str("player", caller).Msg("failed to store new game")
			return "", translate(err)
		}
		s.logger.Warn().Str("session_id", g.SessionID).Int("attempt", attempt).Msg("session id collision")
	}

	return "", translate(fmt.Errorf("failed to allocate a session id after %d attempts", createAttempts))
}

// JoinGame seats caller as player two
func (s *gameServiceImpl) JoinGame(ctx context.Context, caller, sessionID string) (*GameState, error) {
	if caller == "" {
		return nil, translate(ErrUnauthenticated)
	}

	var state *GameState
	err := s.store.WithMut(ctx, sessionID, func(g *engine.Game) error {
		if err := g.Join(caller, engine.RejectSelfJoin(s.rejectSelfJoin)); err != nil {
			return err
		}
		g.Touch(s.now())
		state = Snapshot(g)
		return nil
	})
	if err != nil {
		s.logRejection(err, "join", sessionID, caller)
		return nil, translate(err)
	}

	s.logger.Info().Str("session_id", sessionID).Str("player", caller).Msg("player joined")
	s.publish(state)
	return state, nil
}

// MakeMove applies one move for caller. source and target are slot names.
func (s *gameServiceImpl) MakeMove(ctx context.Context, caller, sessionID, source, target string) (*GameState, error) {
	if caller == "" {
		return nil, translate(ErrUnauthenticated)
	}
	from, err := engine.ParseSlot(source)
	if err != nil {
		return nil, translate(err)
	}
	to, err := engine.ParseSlot(target)
	if err != nil {
		return nil, translate(err)
	}

	var state *GameState
	err = s.store.WithMut(ctx, sessionID, func(g *engine.Game) error {
		if err := g.ApplyMove(caller, from, to); err != nil {
			return err
		}
		g.Touch(s.now())
		state = Snapshot(g)
		return nil
	})
	if err != nil {
		s.logRejection(err, "move", sessionID, caller)
		return nil, translate(err)
	}

	event := s.logger.Info().
		Str("session_id", sessionID).
		Str("player", caller).
		Str("source", from.String()).
		Str("target", to.String()).
		Int("move_count", state.MoveCount)
	if state.Winner != "" {
		event.Str("winner", state.Winner).Msg("game finished")
	} else {
		event.Msg("move applied")
	}
	s.publish(state)
	return state, nil
}

// GetGameState returns a snapshot of a session
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*GameState, error) {
	g, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load game")
		}
		return nil, translate(err)
	}
	return Snapshot(g), nil
}

// ListGames returns the games caller is seated in, oldest first
func (s *gameServiceImpl) ListGames(ctx context.Context, caller string) ([]*GameState, error) {
	if caller == "" {
		return nil, translate(ErrUnauthenticated)
	}

	games, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list games")
		return nil, translate(err)
	}

	result := make([]*GameState, 0)
	for _, g := range games {
		if _, ok := g.SeatOf(caller); ok {
			result = append(result, Snapshot(g))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].SessionID < result[j].SessionID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Sweep removes finished games idle for longer than retention
func (s *gameServiceImpl) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	removed, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return removed, translate(err)
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Time("cutoff", cutoff).Msg("swept finished games")
	}
	return removed, nil
}

func (s *gameServiceImpl) publish(state *GameState) {
	if s.notifier != nil {
		s.notifier.Publish(state)
	}
}

func (s *gameServiceImpl) logRejection(err error, action, sessionID, caller string) {
	code := CodeOf(translate(err))
	if code == CodeInternal {
		s.logger.Error().Err(err).Str("session_id", sessionID).Str("player", caller).Str("action", action).Msg("mutation failed")
		return
	}
	s.logger.Debug().Str("session_id", sessionID).Str("player", caller).Str("action", action).Str("code", string(code)).Msg("rejected")
}
