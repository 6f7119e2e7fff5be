package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	latestTTL     = 24 * time.Hour
	eventsKeepLen = 100
)

// valkeyCmdable je podmnožina *redis.Client, kterou sink používá.
type valkeyCmdable interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// ValkeySink drží "Hot Storage" v Valkey (Redis):
// poslední vzorek pod sensor:last:<deviceId> s expirací 24h
// a posledních 100 událostí v seznamu sensor:events:<deviceId>.
type ValkeySink struct {
	rdb    valkeyCmdable
	device Device
}

// NewValkeyClient vytvoří klienta a ověří spojení (Ping).
func NewValkeyClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Valkey není dostupný: %w", err)
	}
	return rdb, nil
}

func NewValkeySink(rdb valkeyCmdable, dev Device) *ValkeySink {
	return &ValkeySink{rdb: rdb, device: dev}
}

func (v *ValkeySink) Name() string { return "valkey" }

func (v *ValkeySink) latestKey() string {
	return fmt.Sprintf("sensor:last:%s", v.device.ID)
}

func (v *ValkeySink) eventsKey() string {
	return fmt.Sprintf("sensor:events:%s", v.device.ID)
}

func (v *ValkeySink) SendSample(ctx context.Context, s Sample) error {
	payload, err := json.Marshal(sampleEnvelope(v.device, s))
	if err != nil {
		return &SinkError{Sink: v.Name(), Err: err}
	}
	if err := v.rdb.Set(ctx, v.latestKey(), payload, latestTTL).Err(); err != nil {
		return &SinkError{Sink: v.Name(), Err: fmt.Errorf("chyba update Valkey: %w", err)}
	}
	return nil
}

func (v *ValkeySink) SendEvent(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(eventEnvelope(ev))
	if err != nil {
		return &SinkError{Sink: v.Name(), Err: err}
	}
	key := v.eventsKey()
	if err := v.rdb.LPush(ctx, key, payload).Err(); err != nil {
		return &SinkError{Sink: v.Name(), Err: fmt.Errorf("lpush %s: %w", key, err)}
	}
	if err := v.rdb.LTrim(ctx, key, 0, eventsKeepLen-1).Err(); err != nil {
		return &SinkError{Sink: v.Name(), Err: fmt.Errorf("ltrim %s: %w", key, err)}
	}
	return nil
}

var _ Sink = (*ValkeySink)(nil)
