package main

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// pipeline spojuje zdroj, úložiště a poskytovatele /api/latest pro zvolený režim.
type pipeline struct {
	source SampleSource
	store  HistoryStore
	// latest je nil, pokud má latest obsluhovat Sampler (hardware).
	latest  LatestProvider
	closers []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// buildPipeline vybere strategii podle MODE a STORE.
// Simulace vždy historii dopočítává, STORE se ignoruje.
func buildPipeline(ctx context.Context, cfg Config, dev Device) (*pipeline, error) {
	if cfg.Mode == ModeSynthetic {
		src := NewSyntheticSource(cfg.BaseTemp, cfg.BaseHum)
		return &pipeline{
			source: src,
			store:  NewOnDemandStore(src),
			latest: SourceLatest{Source: src},
		}, nil
	}

	p := &pipeline{source: NewHardwareSource(cfg.IIODevice, cfg.ReadTimeout)}

	switch cfg.Store {
	case StoreMemory:
		p.store = NewMemoryStore(cfg.MemoryCapacity)
	case StoreTimescale:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ts, pool, err := NewTimescaleStore(connectCtx, cfg.PostgresURL, dev.ID)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pool.Close)
		if err := ts.EnsureSchema(connectCtx); err != nil {
			p.Close()
			return nil, err
		}
		p.store = ts
	default:
		csv, err := NewCSVLogStore(cfg.DataFile, cfg.DataFileMaxBytes)
		if err != nil {
			return nil, err
		}
		p.store = csv
	}
	return p, nil
}

// buildActuator připraví relé. Výstup se při startu srovná do stavu OFF.
func buildActuator(ctx context.Context, cfg Config) (*Actuator, error) {
	if cfg.ActuatorGPIO == "" {
		return NewActuator(nil), nil
	}
	relay := NewGPIORelay(cfg.ActuatorGPIO)
	if err := relay.Set(ctx, false); err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}
	return NewActuator(relay), nil
}

// buildSinks zapne sinky podle toho, které adresy jsou nastavené.
// mqttClient může být nil, pokud MQTT_BROKER chybí.
func buildSinks(ctx context.Context, cfg Config, dev Device, mqttClient mqtt.Client) ([]Sink, []func(), error) {
	var (
		sinks   []Sink
		closers []func()
	)

	if cfg.SinkURL != "" {
		sinks = append(sinks, NewHTTPSink(cfg.SinkURL, dev, cfg.SinkTimeout))
	}
	if mqttClient != nil {
		sinks = append(sinks, NewMQTTSink(mqttClient, dev, cfg.MQTTTopicPrefix))
	}
	if cfg.ValkeyAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.SinkTimeout)
		defer cancel()
		rdb, err := NewValkeyClient(pingCtx, cfg.ValkeyAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("valkey sink: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		sinks = append(sinks, NewValkeySink(rdb, dev))
	}
	return sinks, closers, nil
}
