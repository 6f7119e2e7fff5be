package main

import (
	"context"
	"log/slog"
	"time"
)

// forwardItem nese buď vzorek, nebo událost.
type forwardItem struct {
	sample *Sample
	event  *Event
}

// Forwarder odděluje vzorkovací smyčku od síťových volání.
// Fronta je omezená; když je plná, záznam se zahodí (žádný back-pressure).
// Jeden worker volá všechny sinky postupně, každé volání má vlastní timeout.
type Forwarder struct {
	sinks   []Sink
	queue   chan forwardItem
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

func NewForwarder(sinks []Sink, size int, timeout time.Duration, logger *slog.Logger, metrics *Metrics) *Forwarder {
	if size <= 0 {
		size = 1
	}
	return &Forwarder{
		sinks:   sinks,
		queue:   make(chan forwardItem, size),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Enabled říká, jestli je nakonfigurovaný aspoň jeden sink.
func (f *Forwarder) Enabled() bool {
	return len(f.sinks) > 0
}

// EnqueueSample nikdy neblokuje. Vrací false, pokud byl záznam zahozen.
func (f *Forwarder) EnqueueSample(s Sample) bool {
	return f.enqueue(forwardItem{sample: &s})
}

// EnqueueEvent nikdy neblokuje. Vrací false, pokud byl záznam zahozen.
func (f *Forwarder) EnqueueEvent(ev Event) bool {
	return f.enqueue(forwardItem{event: &ev})
}

func (f *Forwarder) enqueue(item forwardItem) bool {
	if !f.Enabled() {
		return false
	}
	select {
	case f.queue <- item:
		return true
	default:
		f.metrics.SinkDropped()
		f.logger.Warn("Fronta pro sinky je plná, záznam zahozen", "capacity", cap(f.queue))
		return false
	}
}

// Run zpracovává frontu, dokud se nezruší ctx.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-f.queue:
			f.deliver(ctx, item)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, item forwardItem) {
	for _, sink := range f.sinks {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)

		var err error
		if item.sample != nil {
			err = sink.SendSample(callCtx, *item.sample)
		} else {
			err = sink.SendEvent(callCtx, *item.event)
		}
		cancel()

		f.metrics.ObserveSink(sink.Name(), err)
		if err != nil {
			f.logger.Error("Chyba při přeposlání do sinku", "sink", sink.Name(), "error", err)
			continue
		}
		f.logger.Debug("Záznam přeposlán", "sink", sink.Name())
	}
}
