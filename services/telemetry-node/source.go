package main

import (
	"context"
	"math/rand"
	"time"
)

// SampleSource vyrábí jedno měření pro daný okamžik.
// Implementace: HardwareSource (čidlo přes IIO) a SyntheticSource (simulace).
type SampleSource interface {
	Read(ctx context.Context, now time.Time) (Sample, error)
}

// SyntheticSource simuluje čidlo. Generátor je seedovaný samotnou časovou značkou,
// takže stejný čas dá vždy stejný vzorek. Díky tomu jde historii dopočítat bez úložiště.
type SyntheticSource struct {
	BaseTemp float64
	BaseHum  float64
}

func NewSyntheticSource(baseTemp, baseHum float64) *SyntheticSource {
	return &SyntheticSource{BaseTemp: baseTemp, BaseHum: baseHum}
}

func (s *SyntheticSource) Read(_ context.Context, now time.Time) (Sample, error) {
	return s.at(now), nil
}

func (s *SyntheticSource) at(ts time.Time) Sample {
	ts = ts.UTC().Truncate(time.Second)
	r := rand.New(rand.NewSource(ts.Unix()))

	// setiny: teplota ±0.50 °C, vlhkost ±2.00 %
	tNoise := float64(r.Intn(101)-50) / 100.0
	hNoise := float64(r.Intn(401)-200) / 100.0

	return NewSample(ts, s.BaseTemp+tNoise, s.BaseHum+hNoise)
}

var _ SampleSource = (*SyntheticSource)(nil)
