package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// scriptedSource vrací nastavenou hodnotu nebo chybu.
type scriptedSource struct {
	mu   sync.Mutex
	temp float64
	hum  float64
	err  error
}

func (s *scriptedSource) set(temp, hum float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp, s.hum, s.err = temp, hum, err
}

func (s *scriptedSource) Read(_ context.Context, now time.Time) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Sample{}, s.err
	}
	return NewSample(now, s.temp, s.hum), nil
}

type samplerFixture struct {
	sampler *Sampler
	source  *scriptedSource
	store   *MemoryStore
	fwd     *Forwarder
	metrics *Metrics
	clock   time.Time
}

func newSamplerFixture(t *testing.T, sinks ...Sink) *samplerFixture {
	t.Helper()
	f := &samplerFixture{
		source:  &scriptedSource{temp: 21, hum: 45},
		store:   NewMemoryStore(100),
		metrics: NewMetrics(),
		clock:   fixedNow,
	}
	f.fwd = NewForwarder(sinks, 16, time.Second, discardLogger(), f.metrics)
	f.sampler = NewSampler(f.source, f.store, f.fwd, f.metrics, discardLogger(), Device{ID: "ESP32-ABCD", MAC: "AA:BB:CC:DD:AB:CD"}, SamplerConfig{
		ReadInterval: 10 * time.Second,
		LogInterval:  5 * time.Minute,
		ReadTimeout:  time.Second,
		AlertMin:     5,
		AlertMax:     35,
	})
	f.sampler.now = func() time.Time { return f.clock }
	f.sampler.chipTemp = func(context.Context) *float64 { return nil }
	return f
}

func (f *samplerFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *samplerFixture) queued() []forwardItem {
	var items []forwardItem
	for {
		select {
		case it := <-f.fwd.queue:
			items = append(items, it)
		default:
			return items
		}
	}
}

func TestSamplerLatestBeforeAnyRead(t *testing.T) {
	f := newSamplerFixture(t)
	_, err := f.sampler.Latest(context.Background(), fixedNow)
	require.ErrorIs(t, err, ErrNoReading)
}

func TestSamplerKeepsLastGoodReading(t *testing.T) {
	f := newSamplerFixture(t)
	ctx := context.Background()

	f.sampler.readTick(ctx)
	f.advance(10 * time.Second)
	f.source.set(0, 0, fmt.Errorf("%w: NaN", ErrSensor))
	f.sampler.readTick(ctx)
	f.sampler.readTick(ctx)

	got, err := f.sampler.Latest(ctx, f.clock)
	require.NoError(t, err)
	require.Equal(t, fixedNow, got.Timestamp)
	require.InDelta(t, 21.0, got.Temperature, 1e-9)
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.sensorErrors))
}

func TestSamplerFailedReadsBeforeFirstGood(t *testing.T) {
	f := newSamplerFixture(t)
	f.source.set(0, 0, ErrSensor)
	f.sampler.readTick(context.Background())

	_, err := f.sampler.Latest(context.Background(), f.clock)
	require.ErrorIs(t, err, ErrNoReading)
}

func TestSamplerLogTick(t *testing.T) {
	f := newSamplerFixture(t, &recordingSink{name: "r"})
	ctx := context.Background()

	// bez měření se nic neukládá
	f.sampler.logTick(ctx)
	require.Equal(t, 0, f.store.Len())

	f.sampler.readTick(ctx)
	f.sampler.logTick(ctx)
	require.Equal(t, 1, f.store.Len())

	// stejné měření se neukládá dvakrát
	f.sampler.logTick(ctx)
	require.Equal(t, 1, f.store.Len())

	// poslední čtení selhalo: tik se přeskočí
	f.advance(10 * time.Second)
	f.source.set(0, 0, ErrSensor)
	f.sampler.readTick(ctx)
	f.sampler.logTick(ctx)
	require.Equal(t, 1, f.store.Len())

	f.advance(10 * time.Second)
	f.source.set(22, 46, nil)
	f.sampler.readTick(ctx)
	f.sampler.logTick(ctx)
	require.Equal(t, 2, f.store.Len())

	items := f.queued()
	require.Len(t, items, 2)
	require.NotNil(t, items[1].sample)
	require.Equal(t, fixedNow.Add(20*time.Second), items[1].sample.Timestamp)
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.samplesStored))
}

type failingStore struct{}

func (failingStore) Append(context.Context, Sample) error { return ErrStoreWrite }

func (failingStore) Range(context.Context, HistoryQuery, time.Time) ([]Sample, error) {
	return nil, ErrStoreWrite
}

func TestSamplerStoreErrorStillForwards(t *testing.T) {
	f := newSamplerFixture(t, &recordingSink{name: "r"})
	f.sampler.store = failingStore{}
	ctx := context.Background()

	f.sampler.readTick(ctx)
	f.sampler.logTick(ctx)

	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.storeErrors))
	require.Len(t, f.queued(), 1)

	// zahozený vzorek se nezkouší znovu
	f.sampler.logTick(ctx)
	require.Empty(t, f.queued())
}

func TestSamplerFailingSinkDoesNotAffectState(t *testing.T) {
	sink := &recordingSink{name: "down", err: ErrSink}
	f := newSamplerFixture(t, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.fwd.Run(ctx)

	f.sampler.readTick(ctx)
	f.sampler.logTick(ctx)
	require.Eventually(t, func() bool { return len(sink.Samples()) == 1 }, time.Second, 5*time.Millisecond)

	got, err := f.sampler.Latest(ctx, f.clock)
	require.NoError(t, err)
	require.Equal(t, fixedNow, got.Timestamp)

	hist, err := f.store.Range(ctx, HistoryQuery{HoursBack: 1, StepMinutes: 1}, f.clock)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestSamplerAlertTransitions(t *testing.T) {
	f := newSamplerFixture(t, &recordingSink{name: "r"})
	ctx := context.Background()

	steps := []struct {
		temp   float64
		kind   EventKind
		reason string
	}{
		{20, "", ""},
		{36, EventAlert, "temperature-high"},
		{40, "", ""},
		{30, EventRecovered, "temperature-normal"},
		{2, EventAlert, "temperature-low"},
		{3, "", ""},
		{6, EventRecovered, "temperature-normal"},
	}
	for i, st := range steps {
		f.advance(10 * time.Second)
		f.source.set(st.temp, 50, nil)
		f.sampler.readTick(ctx)

		items := f.queued()
		if st.kind == "" {
			require.Empty(t, items, "step %d", i)
			continue
		}
		require.Len(t, items, 1, "step %d", i)
		require.NotNil(t, items[0].event)
		require.Equal(t, st.kind, items[0].event.Kind)
		require.Equal(t, st.reason, items[0].event.Reason)
		require.Equal(t, "ESP32-ABCD", items[0].event.DeviceID)
	}
}

func TestSamplerAlertsDisabled(t *testing.T) {
	f := newSamplerFixture(t, &recordingSink{name: "r"})
	f.sampler.cfg.AlertMin, f.sampler.cfg.AlertMax = 0, 0
	f.source.set(80, 50, nil)
	f.sampler.readTick(context.Background())
	require.Empty(t, f.queued())
}

func TestSamplerRunReadsImmediately(t *testing.T) {
	f := newSamplerFixture(t)
	f.sampler.now = time.Now
	f.sampler.cfg.ReadInterval = time.Hour
	f.sampler.cfg.LogInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sampler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := f.sampler.Latest(ctx, time.Now())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run neskončil po zrušení kontextu")
	}
}

func TestSourceLatestIsFresh(t *testing.T) {
	src := NewSyntheticSource(24, 55)
	latest := SourceLatest{Source: src}

	got, err := latest.Latest(context.Background(), fixedNow)
	require.NoError(t, err)
	want, _ := src.Read(context.Background(), fixedNow)
	require.Equal(t, want, got)
}
