package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Soubory IIO rozhraní. Ovladač dht11 (DHT11/DHT22/AM2302) i bmp280 (BME280)
// hlásí teplotu v tisícinách °C a vlhkost v tisícinách %.
const (
	iioTempFile = "in_temp_input"
	iioHumFile  = "in_humidityrelative_input"
)

// HardwareSource čte fyzické čidlo přes Linux IIO sysfs.
// Čtení DHT22 v jádře může trvat i sekundy nebo selhat (EIO/ETIMEDOUT),
// proto každé volání hlídá timeout. Uvnitř volání se neopakuje.
type HardwareSource struct {
	dir     string
	timeout time.Duration

	// readFile lze v testech podvrhnout.
	readFile func(name string) ([]byte, error)

	mu       sync.Mutex
	inFlight bool
}

// NewHardwareSource vytvoří zdroj nad adresářem IIO zařízení
// (např. /sys/bus/iio/devices/iio:device0).
func NewHardwareSource(dir string, timeout time.Duration) *HardwareSource {
	return &HardwareSource{
		dir:      dir,
		timeout:  timeout,
		readFile: os.ReadFile,
	}
}

func (h *HardwareSource) Read(ctx context.Context, now time.Time) (Sample, error) {
	h.mu.Lock()
	if h.inFlight {
		h.mu.Unlock()
		return Sample{}, fmt.Errorf("%w: %w", ErrSensor, ErrSensorBusy)
	}
	h.inFlight = true
	h.mu.Unlock()

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	type result struct {
		sample Sample
		err    error
	}
	done := make(chan result, 1)

	go func() {
		s, err := h.readOnce(now)

		h.mu.Lock()
		h.inFlight = false
		h.mu.Unlock()

		done <- result{sample: s, err: err}
	}()

	select {
	case r := <-done:
		return r.sample, r.err
	case <-ctx.Done():
		return Sample{}, fmt.Errorf("%w: %w", ErrSensor, ctx.Err())
	}
}

func (h *HardwareSource) readOnce(now time.Time) (Sample, error) {
	temp, err := h.readMilli(iioTempFile)
	if err != nil {
		return Sample{}, err
	}
	hum, err := h.readMilli(iioHumFile)
	if err != nil {
		return Sample{}, err
	}

	s := NewSample(now, temp, hum)
	if !s.Valid() {
		return Sample{}, fmt.Errorf("%w: value out of range (temp=%.2f hum=%.2f)", ErrSensor, temp, hum)
	}
	return s, nil
}

func (h *HardwareSource) readMilli(name string) (float64, error) {
	raw, err := h.readFile(filepath.Join(h.dir, name))
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", ErrSensor, name, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %w", ErrSensor, name, err)
	}
	return v / 1000.0, nil
}

var _ SampleSource = (*HardwareSource)(nil)
