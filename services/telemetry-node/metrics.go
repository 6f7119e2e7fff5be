package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics drží Prometheus metriky uzlu ve vlastním registru.
type Metrics struct {
	registry *prometheus.Registry

	sensorReads   *prometheus.CounterVec
	sensorErrors  prometheus.Counter
	samplesStored prometheus.Counter
	storeErrors   prometheus.Counter
	sinkSent      *prometheus.CounterVec
	sinkDropped   prometheus.Counter
	temperature   prometheus.Gauge
	humidity      prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	actuatorOn    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_sensor_reads_total",
			Help: "Sensor read attempts by result.",
		}, []string{"result"}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_sensor_errors_total",
			Help: "Failed sensor reads (NaN, timeout, I/O).",
		}),
		samplesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_samples_stored_total",
			Help: "Samples appended to the history store.",
		}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_store_errors_total",
			Help: "Samples dropped because the history append failed.",
		}),
		sinkSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_sink_sent_total",
			Help: "Records forwarded to remote sinks by sink and result.",
		}, []string{"sink", "result"}),
		sinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_sink_dropped_total",
			Help: "Records dropped because the forward queue was full.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_temperature_celsius",
			Help: "Last valid temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_humidity_percent",
			Help: "Last valid relative humidity reading.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		actuatorOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_actuator_on",
			Help: "Relay output state (1 = ON).",
		}),
	}

	m.registry.MustRegister(
		m.sensorReads, m.sensorErrors,
		m.samplesStored, m.storeErrors,
		m.sinkSent, m.sinkDropped,
		m.temperature, m.humidity,
		m.httpRequests, m.actuatorOn,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler vrací /metrics endpoint nad vlastním registrem.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRead(s Sample, err error) {
	if err != nil {
		m.sensorReads.WithLabelValues("error").Inc()
		m.sensorErrors.Inc()
		return
	}
	m.sensorReads.WithLabelValues("ok").Inc()
	m.temperature.Set(s.Temperature)
	m.humidity.Set(s.Humidity)
}

func (m *Metrics) ObserveStored(err error) {
	if err != nil {
		m.storeErrors.Inc()
		return
	}
	m.samplesStored.Inc()
}

func (m *Metrics) ObserveSink(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sinkSent.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) SinkDropped() {
	m.sinkDropped.Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveActuator(state ActuatorState) {
	if state == ActuatorOn {
		m.actuatorOn.Set(1)
		return
	}
	m.actuatorOn.Set(0)
}
