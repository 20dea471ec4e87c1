package engine

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Game is the aggregate root of one Chopsticks session. It owns both players.
type Game struct {
	SessionID  string
	PlayerOne  *Player
	PlayerTwo  *Player
	Phase      Phase
	ActiveTurn Seat
	MoveCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type options struct {
	newID func() string
	coin  func() bool
	now   func() time.Time
}

// Option customizes game creation
type Option func(*options)

// WithIDGenerator overrides the session id generator
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithCoin overrides the random source used to pick the first seat.
// The seat is PlayerOne when fn returns true.
func WithCoin(fn func() bool) Option {
	return func(o *options) { o.coin = fn }
}

// WithClock overrides the creation timestamp source
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

// New creates a game awaiting an opponent, seated by creator.
// The caller is responsible for storing it.
func New(creator string, opts ...Option) *Game {
	o := options{
		newID: func() string { return uuid.NewString() },
		coin:  randomBit,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := o.newID()
	turn := PlayerTwo
	if o.coin() {
		turn = PlayerOne
	}
	now := o.now()

	return &Game{
		SessionID:  id,
		PlayerOne:  newPlayer(creator, id),
		Phase:      AwaitingOpponent{},
		ActiveTurn: turn,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func randomBit() bool {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("engine: read random bit: %v", err))
	}
	return b[0]&1 == 1
}

type joinOptions struct {
	rejectSelfJoin bool
}

// JoinOption customizes join rules
type JoinOption func(*joinOptions)

// RejectSelfJoin stops the creator from taking the second seat of their own game
func RejectSelfJoin(reject bool) JoinOption {
	return func(o *joinOptions) { o.rejectSelfJoin = reject }
}

// Join seats joiner as player two and starts the game
func (g *Game) Join(joiner string, opts ...JoinOption) error {
	var o joinOptions
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := g.Phase.(AwaitingOpponent); !ok || g.PlayerTwo != nil {
		return ErrNotJoinable
	}
	if o.rejectSelfJoin && g.PlayerOne != nil && g.PlayerOne.Identity == joiner {
		return fmt.Errorf("%w: creator cannot take the second seat", ErrNotJoinable)
	}

	g.PlayerTwo = newPlayer(joiner, g.SessionID)
	g.Phase = InProgress{}
	return nil
}

// ApplyMove adds the actor's source slot value to the opponent's target slot.
// Every precondition is checked before any field is written, so a returned
// error leaves the game untouched.
func (g *Game) ApplyMove(actor string, source, target Slot) error {
	if _, ok := g.Phase.(InProgress); !ok {
		return ErrNotInProgress
	}

	mover := g.Player(g.ActiveTurn)
	opponent := g.Player(g.ActiveTurn.Other())
	if mover == nil || opponent == nil || mover.Identity != actor {
		return ErrNotYourTurn
	}

	amount := mover.Value(source)
	if amount == 0 {
		return ErrEmptySourceSlot
	}

	opponent.set(target, wrap(opponent.Value(target)+amount))
	g.MoveCount++

	if opponent.Eliminated() {
		g.Phase = Finished{Winner: actor}
		return nil
	}
	g.ActiveTurn = g.ActiveTurn.Other()
	return nil
}

func wrap(v int) int {
	if v >= EliminationThreshold {
		return 0
	}
	return v
}

// Player returns the player in seat, or nil if the seat is empty
func (g *Game) Player(seat Seat) *Player {
	switch seat {
	case PlayerOne:
		return g.PlayerOne
	case PlayerTwo:
		return g.PlayerTwo
	}
	return nil
}

// SeatOf returns the seat occupied by identity
func (g *Game) SeatOf(identity string) (Seat, bool) {
	if g.PlayerOne != nil && g.PlayerOne.Identity == identity {
		return PlayerOne, true
	}
	if g.PlayerTwo != nil && g.PlayerTwo.Identity == identity {
		return PlayerTwo, true
	}
	return 0, false
}

// Winner returns the winning identity once the game is finished
func (g *Game) Winner() (string, bool) {
	if f, ok := g.Phase.(Finished); ok {
		return f.Winner, true
	}
	return "", false
}

// IsFinished reports whether the game has reached its terminal phase
func (g *Game) IsFinished() bool {
	_, ok := g.Phase.(Finished)
	return ok
}

// Touch records a successful mutation time
func (g *Game) Touch(t time.Time) {
	g.UpdatedAt = t.UTC()
}

// Clone returns a deep copy
func (g *Game) Clone() *Game {
	cp := *g
	cp.PlayerOne = g.PlayerOne.clone()
	cp.PlayerTwo = g.PlayerTwo.clone()
	return &cp
}

type gameJSON struct {
	SessionID  string    `json:"session_id"`
	PlayerOne  *Player   `json:"player_one"`
	PlayerTwo  *Player   `json:"player_two,omitempty"`
	Phase      PhaseJSON `json:"phase"`
	ActiveTurn Seat      `json:"active_turn"`
	MoveCount  int       `json:"move_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler
func (g *Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(gameJSON{
		SessionID:  g.SessionID,
		PlayerOne:  g.PlayerOne,
		PlayerTwo:  g.PlayerTwo,
		Phase:      PhaseJSON{g.Phase},
		ActiveTurn: g.ActiveTurn,
		MoveCount:  g.MoveCount,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (g *Game) UnmarshalJSON(data []byte) error {
	var raw gameJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = Game{
		SessionID:  raw.SessionID,
		PlayerOne:  raw.PlayerOne,
		PlayerTwo:  raw.PlayerTwo,
		Phase:      raw.Phase.Phase,
		ActiveTurn: raw.ActiveTurn,
		MoveCount:  raw.MoveCount,
		CreatedAt:  raw.CreatedAt,
		UpdatedAt:  raw.UpdatedAt,
	}
	return nil
}
