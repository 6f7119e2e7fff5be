package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sink je vzdálený best-effort příjemce vzorků a událostí.
// Volání se neopakuje; chyba nesmí ovlivnit lokální stav.
type Sink interface {
	Name() string
	SendSample(ctx context.Context, s Sample) error
	SendEvent(ctx context.Context, ev Event) error
}

// Device identifikuje uzel ve zprávách pro Sink.
type Device struct {
	ID  string
	MAC string
}

// Typy obálek push protokolu.
const (
	envelopeDatos   = "Datos"
	envelopeEstados = "Estados"
)

// datosEnvelope nese jeden vzorek.
type datosEnvelope struct {
	Type     string  `json:"type"`
	DeviceID string  `json:"deviceId"`
	MAC      string  `json:"mac"`
	Temp     float64 `json:"temp"`
	Hum      float64 `json:"hum"`
	TS       string  `json:"ts"`
}

// estadosEnvelope nese jednu stavovou událost.
type estadosEnvelope struct {
	Type     string   `json:"type"`
	DeviceID string   `json:"deviceId"`
	MAC      string   `json:"mac"`
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Reason   string   `json:"reason"`
	ChipTemp *float64 `json:"chipTemp"`
	TS       string   `json:"ts"`
}

func sampleEnvelope(dev Device, s Sample) datosEnvelope {
	return datosEnvelope{
		Type:     envelopeDatos,
		DeviceID: dev.ID,
		MAC:      dev.MAC,
		Temp:     round2(s.Temperature),
		Hum:      round2(s.Humidity),
		TS:       s.Timestamp.UTC().Format(TimeLayout),
	}
}

func eventEnvelope(ev Event) estadosEnvelope {
	return estadosEnvelope{
		Type:     envelopeEstados,
		DeviceID: ev.DeviceID,
		MAC:      ev.MAC,
		ID:       ev.ID,
		Kind:     string(ev.Kind),
		Reason:   ev.Reason,
		ChipTemp: ev.ChipTemperature,
		TS:       ev.Timestamp.UTC().Format(TimeLayout),
	}
}

// SinkError nese podrobnosti o selhání přenosu. errors.Is(err, ErrSink) platí vždy.
type SinkError struct {
	Sink       string
	StatusCode int // 0, pokud odpověď vůbec nepřišla
	Err        error
}

func (e *SinkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sink %s: status %d: %v", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSink}
	}
	return []error{ErrSink, e.Err}
}

// HTTPSink posílá každý záznam jako jeden JSON POST.
type HTTPSink struct {
	url        string
	device     Device
	httpClient *http.Client
}

// NewHTTPSink vytvoří sink s pevným timeoutem klienta.
func NewHTTPSink(url string, dev Device, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url:    url,
		device: dev,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTPSink) Name() string { return "http" }

func (h *HTTPSink) SendSample(ctx context.Context, s Sample) error {
	return h.post(ctx, sampleEnvelope(h.device, s))
}

func (h *HTTPSink) SendEvent(ctx context.Context, ev Event) error {
	return h.post(ctx, eventEnvelope(ev))
}

func (h *HTTPSink) post(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &SinkError{Sink: h.Name(), Err: fmt.Errorf("marshal: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return &SinkError{Sink: h.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return &SinkError{Sink: h.Name(), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SinkError{
			Sink:       h.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}

var _ Sink = (*HTTPSink)(nil)
