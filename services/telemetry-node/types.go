package main

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"strconv"
	"time"
)

// TimeLayout je formát časových značek v API: UTC, přesnost na sekundy.
const TimeLayout = "2006-01-02T15:04:05Z"

// Provozní rozsahy DHT22 / BME280. Hodnoty mimo ně bereme jako chybu čidla.
const (
	minValidTemp = -40.0
	maxValidTemp = 85.0
	minValidHum  = 0.0
	maxValidHum  = 100.0
)

// Chybová taxonomie uzlu. Kontrolujeme přes errors.Is.
var (
	// ErrSensor: čtení selhalo (NaN, timeout, I/O). Řeší se lokálně, poslední dobrá hodnota zůstává.
	ErrSensor = errors.New("sensor read failed")

	// ErrSensorBusy: předchozí čtení (po timeoutu) ještě visí v jádře.
	ErrSensorBusy = errors.New("sensor busy")

	// ErrNoReading: zatím nebylo získáno žádné platné měření.
	ErrNoReading = errors.New("no valid reading yet")

	// ErrStoreWrite: zápis do historie selhal, vzorek se zahodí.
	ErrStoreWrite = errors.New("history store write failed")

	// ErrSink: vzdálené přeposlání selhalo. Neopakuje se.
	ErrSink = errors.New("sink forwarding failed")
)

// Sample je jedno měření (čas, teplota, vlhkost).
// Po vytvoření se nemění.
type Sample struct {
	Timestamp   time.Time
	Temperature float64 // °C
	Humidity    float64 // % RH
}

// NewSample zarovná čas na celé sekundy v UTC.
func NewSample(ts time.Time, temp, hum float64) Sample {
	return Sample{
		Timestamp:   ts.UTC().Truncate(time.Second),
		Temperature: temp,
		Humidity:    hum,
	}
}

// Valid vrací false pro sentinel "bez měření" (NaN/Inf) a pro hodnoty mimo rozsah čidla.
func (s Sample) Valid() bool {
	if math.IsNaN(s.Temperature) || math.IsInf(s.Temperature, 0) {
		return false
	}
	if math.IsNaN(s.Humidity) || math.IsInf(s.Humidity, 0) {
		return false
	}
	if s.Temperature < minValidTemp || s.Temperature > maxValidTemp {
		return false
	}
	return s.Humidity >= minValidHum && s.Humidity <= maxValidHum
}

// sampleJSON je drátový tvar vzorku pro /api/latest a /api/history.
type sampleJSON struct {
	TS   string  `json:"ts"`
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		TS:   s.Timestamp.UTC().Format(TimeLayout),
		Temp: round2(s.Temperature),
		Hum:  round2(s.Humidity),
	})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(TimeLayout, raw.TS)
	if err != nil {
		return err
	}
	*s = NewSample(ts, raw.Temp, raw.Hum)
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// HistoryQuery popisuje okno historie: kolik hodin zpět a s jakým krokem.
type HistoryQuery struct {
	HoursBack   int
	StepMinutes int
}

// DefaultHistoryQuery = poslední týden, jeden vzorek za hodinu.
var DefaultHistoryQuery = HistoryQuery{HoursBack: 168, StepMinutes: 60}

// maxHoursBack chrání výpočet hoursBack*60 před přetečením.
const maxHoursBack = math.MaxInt32 / 60

// maxHistorySamples je tvrdý strop odpovědi /api/history, platí i bez HISTORY_MAX_SAMPLES.
const maxHistorySamples = 100_000

// Count = floor(hoursBack*60 / stepMinutes).
func (q HistoryQuery) Count() int {
	if q.HoursBack <= 0 || q.StepMinutes <= 0 {
		return 0
	}
	return q.HoursBack * 60 / q.StepMinutes
}

func (q HistoryQuery) Window() time.Duration {
	return time.Duration(q.HoursBack) * time.Hour
}

func (q HistoryQuery) Step() time.Duration {
	return time.Duration(q.StepMinutes) * time.Minute
}

// ParseHistoryQuery čte hoursBack a stepMinutes z query stringu.
// Parsování je benevolentní: chybějící, nečíselné nebo nekladné hodnoty
// dostanou default, nikdy nevracíme 400.
// Krok delší než okno se zkrátí na velikost okna (1 vzorek).
// Dotaz s více než maxSamples vzorky se nahradí defaulty.
// maxSamples <= 0 nebo nad maxHistorySamples znamená maxHistorySamples.
func ParseHistoryQuery(v url.Values, def HistoryQuery, maxSamples int) HistoryQuery {
	if maxSamples <= 0 || maxSamples > maxHistorySamples {
		maxSamples = maxHistorySamples
	}
	q := HistoryQuery{
		HoursBack:   parsePositive(v.Get("hoursBack"), def.HoursBack),
		StepMinutes: parsePositive(v.Get("stepMinutes"), def.StepMinutes),
	}
	if q.HoursBack > maxHoursBack {
		q.HoursBack = def.HoursBack
	}
	if q.StepMinutes > q.HoursBack*60 {
		q.StepMinutes = q.HoursBack * 60
	}
	if q.Count() > maxSamples {
		return def
	}
	return q
}

func parsePositive(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// EventKind rozlišuje typy událostí posílaných do Sinku.
type EventKind string

const (
	EventRestart   EventKind = "restart"
	EventAlert     EventKind = "alert"
	EventRecovered EventKind = "recovered"
	// EventActuator: přepnutí relé, Reason nese nový stav (ON/OFF).
	EventActuator EventKind = "actuator"
)

// Event je stavová zpráva zařízení (push-only, lokálně se nedotazuje).
type Event struct {
	ID       string
	DeviceID string
	MAC      string
	Kind     EventKind
	Reason   string

	// ChipTemperature je pointer: teplotu čipu nemusí platforma vůbec hlásit.
	ChipTemperature *float64

	Timestamp time.Time
}
