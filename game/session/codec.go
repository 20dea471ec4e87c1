package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
)

// MaxEncodedSize bounds the encoded size of a single game record
const MaxEncodedSize = 10000

var (
	ErrRecordTooLarge = errors.New("encoded game exceeds size bound")
	ErrCorruptRecord  = errors.New("corrupt game record")
)

// Encode serializes a game for storage
func Encode(g *engine.Game) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game %s: %w", g.SessionID, err)
	}
	if len(data) > MaxEncodedSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(data))
	}
	return data, nil
}

// Decode restores a stored game and checks its invariants
func Decode(data []byte) (*engine.Game, error) {
	var g engine.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &g, nil
}

// mutate runs fn against a decoded copy of data and returns the mutated game
// with its encoding. On any error the caller must keep data as it was.
func mutate(data []byte, fn func(*engine.Game) error) (*engine.Game, []byte, error) {
	g, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	if err := fn(g); err != nil {
		return nil, nil, err
	}
	encoded, err := Encode(g)
	if err != nil {
		return nil, nil, err
	}
	return g, encoded, nil
}
