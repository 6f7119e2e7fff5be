package main

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

// HistoryStore je časově uspořádaný, append-only log vzorků.
// Range vrací vzorky od nejstaršího po nejnovější.
type HistoryStore interface {
	Append(ctx context.Context, s Sample) error
	Range(ctx context.Context, q HistoryQuery, now time.Time) ([]Sample, error)
}

// RawLog umí úložiště, které drží surový textový log (CSV).
// Používá se pro kompatibilní výstup /api/history?format=csv.
type RawLog interface {
	WriteRaw(ctx context.Context, w io.Writer) error
}

// filterWindow vybere vzorky v okně [now-hoursBack, now] a prořeže je tak,
// aby mezi dvěma vydanými vzorky byl aspoň krok stepMinutes.
// Vstup musí být seřazený od nejstaršího.
func filterWindow(samples []Sample, q HistoryQuery, now time.Time) []Sample {
	from := now.Add(-q.Window())
	step := q.Step()

	out := []Sample{}
	var last time.Time
	for _, s := range samples {
		if s.Timestamp.Before(from) || s.Timestamp.After(now) {
			continue
		}
		if len(out) > 0 && s.Timestamp.Sub(last) < step {
			continue
		}
		out = append(out, s)
		last = s.Timestamp
	}
	return out
}

// OnDemandStore je strategie pro simulovaný režim: nic neukládá,
// historii při každém dotazu přegeneruje ze zdroje.
type OnDemandStore struct {
	source SampleSource
}

func NewOnDemandStore(source SampleSource) *OnDemandStore {
	return &OnDemandStore{source: source}
}

// Append je no-op.
func (o *OnDemandStore) Append(context.Context, Sample) error { return nil }

// Range vygeneruje floor(hoursBack*60/stepMinutes) vzorků v časech now - i*step,
// pro i od samples-1 do 0. Poslední vzorek má čas now.
func (o *OnDemandStore) Range(ctx context.Context, q HistoryQuery, now time.Time) ([]Sample, error) {
	now = now.UTC().Truncate(time.Second)
	n := q.Count()
	step := q.Step()

	out := make([]Sample, 0, n)
	for i := n - 1; i >= 0; i-- {
		s, err := o.source.Read(ctx, now.Add(-time.Duration(i)*step))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// MemoryStore drží posledních N vzorků v kruhovém bufferu.
// Nejstarší vzorky se při zaplnění zahazují.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	ring     *deque.Deque[Sample]
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{
		capacity: capacity,
		ring:     deque.New[Sample](0, 64),
	}
}

func (m *MemoryStore) Append(_ context.Context, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring.PushBack(s)
	for m.ring.Len() > m.capacity {
		m.ring.PopFront()
	}
	return nil
}

func (m *MemoryStore) Range(_ context.Context, q HistoryQuery, now time.Time) ([]Sample, error) {
	m.mu.Lock()
	all := make([]Sample, m.ring.Len())
	for i := range all {
		all[i] = m.ring.At(i)
	}
	m.mu.Unlock()

	return filterWindow(all, q, now), nil
}

// Len vrací počet držených vzorků.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Len()
}

var (
	_ HistoryStore = (*OnDemandStore)(nil)
	_ HistoryStore = (*MemoryStore)(nil)
)
