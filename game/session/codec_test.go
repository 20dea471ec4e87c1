package session

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	g := newStartedGame(t, "g1")

	data, err := Encode(g)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) > MaxEncodedSize {
		t.Fatalf("Encoded game is %d bytes", len(data))
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SessionID != "g1" || got.PlayerTwo.Identity != "bob" {
		t.Errorf("Decoded game mismatch: %+v", got)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	g := newTestGame("g1", strings.Repeat("x", MaxEncodedSize))
	if _, err := Encode(g); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Expected ErrRecordTooLarge, got %v", err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"unknown phase", `{"session_id":"g1","player_one":{"identity":"a","left":1,"right":1},"phase":{"status":"paused"},"active_turn":"player_one"}`},
		{"slot out of range", `{"session_id":"g1","player_one":{"identity":"a","left":7,"right":1},"phase":{"status":"awaiting_opponent"},"active_turn":"player_one"}`},
		{"player two while awaiting", `{"session_id":"g1","player_one":{"identity":"a","left":1,"right":1},"player_two":{"identity":"b","left":1,"right":1},"phase":{"status":"awaiting_opponent"},"active_turn":"player_one"}`},
		{"missing id", `{"player_one":{"identity":"a","left":1,"right":1},"phase":{"status":"awaiting_opponent"},"active_turn":"player_one"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("Expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}
