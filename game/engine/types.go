package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// EliminationThreshold is the value at which a slot resets to zero.
	EliminationThreshold = 5

	// StartingValue is the value every slot holds when a player takes a seat.
	StartingValue = 1
)

var (
	ErrNotJoinable     = errors.New("game is not joinable")
	ErrNotInProgress   = errors.New("game is not in progress")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrEmptySourceSlot = errors.New("source slot is empty")
	ErrInvalidSlot     = errors.New("invalid slot")
	ErrInvalidGame     = errors.New("invalid game")
)

// Seat is the logical position of a player, independent of identity
type Seat int

const (
	PlayerOne Seat = iota + 1
	PlayerTwo
)

// Other returns the opposing seat
func (s Seat) Other() Seat {
	if s == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

func (s Seat) String() string {
	switch s {
	case PlayerOne:
		return "player_one"
	case PlayerTwo:
		return "player_two"
	default:
		return fmt.Sprintf("seat(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Seat) MarshalText() ([]byte, error) {
	switch s {
	case PlayerOne, PlayerTwo:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("unknown seat %d", int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Seat) UnmarshalText(text []byte) error {
	switch string(text) {
	case "player_one":
		*s = PlayerOne
	case "player_two":
		*s = PlayerTwo
	default:
		return fmt.Errorf("unknown seat %q", text)
	}
	return nil
}

// Slot names one of a player's two value-holding positions
type Slot int

const (
	Left Slot = iota
	Right
)

func (s Slot) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// ParseSlot converts user input into a Slot.
// Accepts left/right, l/r and 0/1, case-insensitive.
func ParseSlot(raw string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "left", "l", "0":
		return Left, nil
	case "right", "r", "1":
		return Right, nil
	}
	return Left, fmt.Errorf("%w: %q", ErrInvalidSlot, raw)
}

// Player is one seated participant
type Player struct {
	Identity   string  `json:"identity"`
	SessionRef *string `json:"session_ref,omitempty"`
	Left       int     `json:"left"`
	Right      int     `json:"right"`
}

func newPlayer(identity, sessionID string) *Player {
	ref := sessionID
	return &Player{
		Identity:   identity,
		SessionRef: &ref,
		Left:       StartingValue,
		Right:      StartingValue,
	}
}

// Value returns the value held in a slot
func (p *Player) Value(slot Slot) int {
	if slot == Right {
		return p.Right
	}
	return p.Left
}

func (p *Player) set(slot Slot, v int) {
	if slot == Right {
		p.Right = v
		return
	}
	p.Left = v
}

// Eliminated reports whether both slots are empty
func (p *Player) Eliminated() bool {
	return p.Left == 0 && p.Right == 0
}

func (p *Player) clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	if p.SessionRef != nil {
		ref := *p.SessionRef
		cp.SessionRef = &ref
	}
	return &cp
}

// Phase is the lifecycle stage of a game. The set of implementations is closed:
// AwaitingOpponent, InProgress and Finished.
type Phase interface {
	phase()
	String() string
}

// AwaitingOpponent is the phase between creation and a successful join
type AwaitingOpponent struct{}

// InProgress is the phase in which moves are accepted
type InProgress struct{}

// Finished is terminal and records the winning identity
type Finished struct {
	Winner string
}

func (AwaitingOpponent) phase() {}
func (InProgress) phase()       {}
func (Finished) phase()         {}

func (AwaitingOpponent) String() string { return "awaiting_opponent" }
func (InProgress) String() string       { return "in_progress" }
func (f Finished) String() string       { return "finished" }

type phaseJSON struct {
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

func marshalPhase(p Phase) (phaseJSON, error) {
	switch v := p.(type) {
	case AwaitingOpponent:
		return phaseJSON{Status: v.String()}, nil
	case InProgress:
		return phaseJSON{Status: v.String()}, nil
	case Finished:
		return phaseJSON{Status: v.String(), Winner: v.Winner}, nil
	case nil:
		return phaseJSON{}, fmt.Errorf("%w: missing phase", ErrInvalidGame)
	default:
		return phaseJSON{}, fmt.Errorf("%w: unknown phase %T", ErrInvalidGame, p)
	}
}

func unmarshalPhase(raw phaseJSON) (Phase, error) {
	switch raw.Status {
	case "awaiting_opponent":
		return AwaitingOpponent{}, nil
	case "in_progress":
		return InProgress{}, nil
	case "finished":
		return Finished{Winner: raw.Winner}, nil
	}
	return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidGame, raw.Status)
}

// PhaseJSON wraps a Phase for standalone encoding
type PhaseJSON struct {
	Phase
}

func (p PhaseJSON) MarshalJSON() ([]byte, error) {
	raw, err := marshalPhase(p.Phase)
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func (p *PhaseJSON) UnmarshalJSON(data []byte) error {
	var raw phaseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ph, err := unmarshalPhase(raw)
	if err != nil {
		return err
	}
	p.Phase = ph
	return nil
}
