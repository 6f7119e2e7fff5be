package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failingRelay struct{}

func (failingRelay) Set(context.Context, bool) error { return errors.New("gpio busy") }

func TestParseActuatorState(t *testing.T) {
	tests := []struct {
		in   string
		want ActuatorState
		ok   bool
	}{
		{"ON", ActuatorOn, true},
		{"off", ActuatorOff, true},
		{" On ", ActuatorOn, true},
		{"", "", false},
		{"1", "", false},
		{"toggle", "", false},
	}
	for _, tt := range tests {
		got, err := ParseActuatorState(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, ErrActuatorState, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestActuatorSetRecordsChanges(t *testing.T) {
	a := NewActuator(nil)
	a.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	state, history := a.Snapshot()
	require.Equal(t, ActuatorOff, state)
	require.Empty(t, history)

	changed, err := a.Set(ctx, ActuatorOn)
	require.NoError(t, err)
	require.True(t, changed)

	// stejný stav není změna
	changed, err = a.Set(ctx, ActuatorOn)
	require.NoError(t, err)
	require.False(t, changed)

	state, history = a.Snapshot()
	require.Equal(t, ActuatorOn, state)
	require.Equal(t, []ActuatorChange{{State: ActuatorOn, Timestamp: fixedNow}}, history)
}

func TestActuatorHistoryBounded(t *testing.T) {
	a := NewActuator(nil)
	ctx := context.Background()
	for i := 0; i < actuatorHistorySize+10; i++ {
		state := ActuatorOn
		if i%2 == 1 {
			state = ActuatorOff
		}
		_, err := a.Set(ctx, state)
		require.NoError(t, err)
	}

	_, history := a.Snapshot()
	require.Len(t, history, actuatorHistorySize)
	require.Equal(t, ActuatorOff, history[len(history)-1].State)
}

func TestActuatorOutputFailureKeepsState(t *testing.T) {
	a := NewActuator(failingRelay{})

	changed, err := a.Set(context.Background(), ActuatorOn)
	require.Error(t, err)
	require.False(t, changed)

	state, history := a.Snapshot()
	require.Equal(t, ActuatorOff, state)
	require.Empty(t, history)
}

func TestActuatorChangeJSON(t *testing.T) {
	b, err := json.Marshal(ActuatorChange{State: ActuatorOn, Timestamp: fixedNow})
	require.NoError(t, err)
	require.JSONEq(t, `{"state":"ON","ts":"2024-05-17T12:00:00Z"}`, string(b))
}

func TestGPIORelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0o644))
	relay := NewGPIORelay(path)

	require.NoError(t, relay.Set(context.Background(), true))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1", string(raw))

	require.NoError(t, relay.Set(context.Background(), false))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0", string(raw))
}

func TestGPIORelayMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpio17", "value")

	err := NewGPIORelay(path).Set(context.Background(), true)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoFileExists(t, path)
}
