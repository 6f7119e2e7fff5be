package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LatestProvider vrací aktuální měření pro /api/latest.
type LatestProvider interface {
	Latest(ctx context.Context, now time.Time) (Sample, error)
}

// SourceLatest generuje latest přímo ze zdroje (simulovaný režim, bez cache).
type SourceLatest struct {
	Source SampleSource
}

func (l SourceLatest) Latest(ctx context.Context, now time.Time) (Sample, error) {
	return l.Source.Read(ctx, now)
}

// SamplerConfig drží časování a prahy alarmu.
// Alarm je vypnutý, pokud AlertMin >= AlertMax.
type SamplerConfig struct {
	ReadInterval time.Duration
	LogInterval  time.Duration
	ReadTimeout  time.Duration
	AlertMin     float64
	AlertMax     float64
}

func (c SamplerConfig) alertsEnabled() bool {
	return c.AlertMin < c.AlertMax
}

// Sampler periodicky čte zdroj (READ_INTERVAL) a nezávisle na tom
// ukládá a přeposílá poslední dobré měření (LOG_INTERVAL).
type Sampler struct {
	source    SampleSource
	store     HistoryStore
	forwarder *Forwarder
	metrics   *Metrics
	logger    *slog.Logger
	device    Device
	chipTemp  ChipThermometer
	cfg       SamplerConfig
	now       func() time.Time

	mu           sync.Mutex
	last         Sample
	hasGood      bool
	lastReadOK   bool
	lastAppended time.Time
	alerting     bool
}

func NewSampler(source SampleSource, store HistoryStore, fwd *Forwarder, metrics *Metrics, logger *slog.Logger, dev Device, cfg SamplerConfig) *Sampler {
	return &Sampler{
		source:    source,
		store:     store,
		forwarder: fwd,
		metrics:   metrics,
		logger:    logger,
		device:    dev,
		chipTemp:  readChipTemperature,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run blokuje, dokud se nezruší ctx.
func (s *Sampler) Run(ctx context.Context) {
	readTicker := time.NewTicker(s.cfg.ReadInterval)
	defer readTicker.Stop()
	logTicker := time.NewTicker(s.cfg.LogInterval)
	defer logTicker.Stop()

	// Nečekáme READ_INTERVAL na první hodnotu.
	s.readTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-readTicker.C:
			s.readTick(ctx)
		case <-logTicker.C:
			s.logTick(ctx)
		}
	}
}

func (s *Sampler) readTick(ctx context.Context) {
	readCtx := ctx
	if s.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
	}

	sample, err := s.source.Read(readCtx, s.now())
	s.metrics.ObserveRead(sample, err)
	if err != nil {
		s.mu.Lock()
		s.lastReadOK = false
		s.mu.Unlock()
		s.logger.Warn("Chyba čtení čidla, držím poslední platnou hodnotu", "error", err)
		return
	}

	s.mu.Lock()
	s.last = sample
	s.hasGood = true
	s.lastReadOK = true
	kind, reason, fire := s.evaluateAlert(sample.Temperature)
	s.mu.Unlock()

	s.logger.Debug("Čidlo přečteno", "temp", sample.Temperature, "hum", sample.Humidity)

	if fire {
		s.logger.Warn("Změna stavu alarmu", "kind", kind, "reason", reason, "temp", sample.Temperature)
		s.Emit(ctx, kind, reason)
	}
}

// evaluateAlert musí běžet pod s.mu. Událost vzniká jen při přechodu hranice.
func (s *Sampler) evaluateAlert(temp float64) (EventKind, string, bool) {
	if !s.cfg.alertsEnabled() {
		return "", "", false
	}
	out := temp < s.cfg.AlertMin || temp > s.cfg.AlertMax
	switch {
	case out && !s.alerting:
		s.alerting = true
		if temp > s.cfg.AlertMax {
			return EventAlert, "temperature-high", true
		}
		return EventAlert, "temperature-low", true
	case !out && s.alerting:
		s.alerting = false
		return EventRecovered, "temperature-normal", true
	}
	return "", "", false
}

func (s *Sampler) logTick(ctx context.Context) {
	s.mu.Lock()
	if !s.hasGood || !s.lastReadOK || !s.last.Timestamp.After(s.lastAppended) {
		s.mu.Unlock()
		return
	}
	sample := s.last
	s.lastAppended = sample.Timestamp
	s.mu.Unlock()

	err := s.store.Append(ctx, sample)
	s.metrics.ObserveStored(err)
	if err != nil {
		s.logger.Error("Zápis do historie selhal, vzorek zahozen", "error", err)
	}

	s.forwarder.EnqueueSample(sample)
}

// EventEmitter posílá stavové události zařízení.
type EventEmitter interface {
	Emit(ctx context.Context, kind EventKind, reason string)
}

// Emit pošle stavovou událost do sinků (fire-and-forget).
func (s *Sampler) Emit(ctx context.Context, kind EventKind, reason string) {
	if !s.forwarder.Enabled() {
		return
	}
	ev := s.device.NewEvent(kind, reason, s.chipTemp(ctx), s.now())
	s.forwarder.EnqueueEvent(ev)
}

// Latest vrací poslední platné měření. Před prvním úspěšným čtením ErrNoReading.
func (s *Sampler) Latest(_ context.Context, _ time.Time) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasGood {
		return Sample{}, ErrNoReading
	}
	return s.last, nil
}

var (
	_ LatestProvider = (*Sampler)(nil)
	_ LatestProvider = SourceLatest{}
	_ EventEmitter   = (*Sampler)(nil)
)
