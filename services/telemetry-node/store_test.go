package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOnDemandStoreTwoHoursHourly(t *testing.T) {
	src := NewSyntheticSource(24, 55)
	store := NewOnDemandStore(src)

	got, err := store.Range(context.Background(), HistoryQuery{HoursBack: 2, StepMinutes: 60}, fixedNow)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, fixedNow.Add(-time.Hour), got[0].Timestamp)
	require.Equal(t, fixedNow, got[1].Timestamp)
}

func TestOnDemandStoreMatchesLiveSamples(t *testing.T) {
	src := NewSyntheticSource(24, 55)
	store := NewOnDemandStore(src)
	q := HistoryQuery{HoursBack: 24, StepMinutes: 15}

	got, err := store.Range(context.Background(), q, fixedNow)
	require.NoError(t, err)
	require.Len(t, got, q.Count())

	for i := 1; i < len(got); i++ {
		require.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
	for _, s := range got {
		live, err := src.Read(context.Background(), s.Timestamp)
		require.NoError(t, err)
		require.Equal(t, live, s)
	}
}

func TestOnDemandStoreAppendIsNoop(t *testing.T) {
	store := NewOnDemandStore(NewSyntheticSource(24, 55))
	require.NoError(t, store.Append(context.Background(), NewSample(fixedNow, 99, 99)))
}

type failingSource struct{}

func (failingSource) Read(context.Context, time.Time) (Sample, error) {
	return Sample{}, errors.New("boom")
}

func TestOnDemandStorePropagatesSourceError(t *testing.T) {
	_, err := NewOnDemandStore(failingSource{}).Range(context.Background(), DefaultHistoryQuery, fixedNow)
	require.Error(t, err)
}

func TestFilterWindow(t *testing.T) {
	var samples []Sample
	// jeden vzorek za 5 minut, posledních 6 hodin
	for i := 72; i >= 0; i-- {
		samples = append(samples, NewSample(fixedNow.Add(-time.Duration(i)*5*time.Minute), 20, 50))
	}
	// vzorek z budoucnosti se nesmí objevit
	samples = append(samples, NewSample(fixedNow.Add(time.Minute), 20, 50))

	got := filterWindow(samples, HistoryQuery{HoursBack: 2, StepMinutes: 30}, fixedNow)
	require.Len(t, got, 5)
	require.Equal(t, fixedNow.Add(-2*time.Hour), got[0].Timestamp)
	require.Equal(t, fixedNow, got[len(got)-1].Timestamp)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i].Timestamp.Sub(got[i-1].Timestamp), 30*time.Minute)
	}
}

func TestFilterWindowEmpty(t *testing.T) {
	got := filterWindow(nil, DefaultHistoryQuery, fixedNow)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	for i := 5; i >= 0; i-- {
		require.NoError(t, store.Append(ctx, NewSample(fixedNow.Add(-time.Duration(i)*time.Minute), float64(i), 50)))
	}
	require.Equal(t, 3, store.Len())

	got, err := store.Range(ctx, HistoryQuery{HoursBack: 1, StepMinutes: 1}, fixedNow)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, fixedNow.Add(-2*time.Minute), got[0].Timestamp)
	require.Equal(t, fixedNow, got[2].Timestamp)
}
