package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		input   string
		want    Slot
		wantErr bool
	}{
		{"left", Left, false},
		{"LEFT", Left, false},
		{" l ", Left, false},
		{"0", Left, false},
		{"right", Right, false},
		{"R", Right, false},
		{"1", Right, false},
		{"", Left, true},
		{"middle", Left, true},
		{"2", Left, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSlot(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSlot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeat(t *testing.T) {
	assert.Equal(t, PlayerTwo, PlayerOne.Other())
	assert.Equal(t, PlayerOne, PlayerTwo.Other())

	text, err := PlayerTwo.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "player_two", string(text))

	var s Seat
	require.NoError(t, s.UnmarshalText([]byte("player_one")))
	assert.Equal(t, PlayerOne, s)
	assert.Error(t, s.UnmarshalText([]byte("player_three")))

	_, err = Seat(0).MarshalText()
	assert.Error(t, err)
}

func TestPhaseJSON(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{AwaitingOpponent{}, `{"status":"awaiting_opponent"}`},
		{InProgress{}, `{"status":"in_progress"}`},
		{Finished{Winner: "alice"}, `{"status":"finished","winner":"alice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			data, err := json.Marshal(PhaseJSON{tt.phase})
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var decoded PhaseJSON
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.phase, decoded.Phase)
		})
	}

	var bad PhaseJSON
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"status":"paused"}`), &bad), ErrInvalidGame)
}
