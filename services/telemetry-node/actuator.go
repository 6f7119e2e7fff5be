package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// ActuatorState je stav reléového výstupu, na drátě "ON" / "OFF".
type ActuatorState string

const (
	ActuatorOn  ActuatorState = "ON"
	ActuatorOff ActuatorState = "OFF"
)

// actuatorHistorySize odpovídá limitu historie ve webovém UI.
const actuatorHistorySize = 50

var ErrActuatorState = errors.New("actuator state must be ON or OFF")

// ParseActuatorState přijme "ON"/"OFF" bez ohledu na velikost písmen.
func ParseActuatorState(s string) (ActuatorState, error) {
	switch ActuatorState(strings.ToUpper(strings.TrimSpace(s))) {
	case ActuatorOn:
		return ActuatorOn, nil
	case ActuatorOff:
		return ActuatorOff, nil
	}
	return "", fmt.Errorf("%w: %q", ErrActuatorState, s)
}

// ActuatorChange je jeden záznam historie přepnutí.
type ActuatorChange struct {
	State     ActuatorState
	Timestamp time.Time
}

func (c ActuatorChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State ActuatorState `json:"state"`
		TS    string        `json:"ts"`
	}{c.State, c.Timestamp.UTC().Format(TimeLayout)})
}

// RelayOutput fyzicky přepíná výstup.
type RelayOutput interface {
	Set(ctx context.Context, on bool) error
}

// GPIORelay zapisuje "1"/"0" do sysfs souboru value (např. /sys/class/gpio/gpio17/value).
type GPIORelay struct {
	path string
}

func NewGPIORelay(path string) *GPIORelay {
	return &GPIORelay{path: path}
}

func (g *GPIORelay) Set(_ context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	// Soubor exportuje jádro, nevytváříme ho.
	f, err := os.OpenFile(g.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("gpio %s: %w", g.path, err)
	}
	if _, err := f.WriteString(v); err != nil {
		f.Close()
		return fmt.Errorf("gpio %s: %w", g.path, err)
	}
	return f.Close()
}

// memoryRelay stav jen drží (simulace, uzel bez relé).
type memoryRelay struct{}

func (memoryRelay) Set(context.Context, bool) error { return nil }

// Actuator vlastní stav relé a krátkou historii přepnutí.
// Po startu je vypnutý.
type Actuator struct {
	mu      sync.Mutex
	output  RelayOutput
	state   ActuatorState
	history *deque.Deque[ActuatorChange]

	now func() time.Time
}

// NewActuator s nil výstupem jen drží stav v paměti.
func NewActuator(output RelayOutput) *Actuator {
	if output == nil {
		output = memoryRelay{}
	}
	return &Actuator{
		output:  output,
		state:   ActuatorOff,
		history: deque.New[ActuatorChange](0, actuatorHistorySize),
		now:     time.Now,
	}
}

// Set přepne výstup. changed je false, pokud už ve stavu byl.
// Když zápis na výstup selže, stav se nemění.
func (a *Actuator) Set(ctx context.Context, state ActuatorState) (changed bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if state == a.state {
		return false, nil
	}
	if err := a.output.Set(ctx, state == ActuatorOn); err != nil {
		return false, err
	}
	a.state = state
	a.history.PushBack(ActuatorChange{State: state, Timestamp: a.now().UTC().Truncate(time.Second)})
	for a.history.Len() > actuatorHistorySize {
		a.history.PopFront()
	}
	return true, nil
}

// Snapshot vrací aktuální stav a historii od nejstarší změny.
func (a *Actuator) Snapshot() (ActuatorState, []ActuatorChange) {
	a.mu.Lock()
	defer a.mu.Unlock()

	changes := make([]ActuatorChange, a.history.Len())
	for i := range changes {
		changes[i] = a.history.At(i)
	}
	return a.state, changes
}
