package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Načtení konfigurace. Do té doby logujeme výchozím JSON loggerem.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, warnings, err := LoadConfig()
	if err != nil {
		logger.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. MQTT klient sdílí sink i log shipping.
	var mqttClient mqtt.Client
	if cfg.MQTTBroker != "" {
		mqttClient = newMQTTClient(cfg.MQTTBroker, cfg.MQTTClientID)
		defer mqttClient.Disconnect(250)
	}

	// 3. Finální logger (JSON / tint, volitelně tee do MQTT logs/<client-id>)
	var logOut io.Writer = os.Stdout
	if cfg.LogMQTT && mqttClient != nil {
		logOut = io.MultiWriter(os.Stdout, NewMqttLogWriter(mqttClient, cfg.MQTTClientID))
	}
	logger = newLogger(cfg.LogFormat, cfg.LogLevel, logOut)
	slog.SetDefault(logger)

	for _, w := range warnings {
		logger.Warn("Konfigurace", "warning", w)
	}

	// 4. Graceful Shutdown přes kontext
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Přijat signál ukončení, vypínám...")
		cancel()
	}()

	// 5. Bez nastavených hodin nemají časové značky smysl.
	if !waitForClock(ctx, cfg.ClockWait, 250*time.Millisecond, time.Now) {
		logger.Warn("Systémový čas není nastavený, pokračuji", "now", time.Now().UTC())
	}

	dev := resolveDevice(cfg.DeviceID, cfg.DeviceMAC)
	logger.Info("Startuji Telemetry Node",
		"device_id", dev.ID, "mac", dev.MAC,
		"mode", cfg.Mode, "store", cfg.Store,
		"read_interval", cfg.ReadInterval, "log_interval", cfg.LogInterval,
	)

	// 6. Infrastruktura (úložiště, sinky). Selhání je fatální.
	pipe, err := buildPipeline(ctx, cfg, dev)
	if err != nil {
		logger.Error("Kritická chyba: nelze připravit úložiště", "error", err)
		os.Exit(1)
	}
	defer pipe.Close()

	sinks, sinkClosers, err := buildSinks(ctx, cfg, dev, mqttClient)
	if err != nil {
		logger.Error("Kritická chyba: nelze připojit sink", "error", err)
		os.Exit(1)
	}
	for _, c := range sinkClosers {
		defer c()
	}

	actuator, err := buildActuator(ctx, cfg)
	if err != nil {
		logger.Error("Kritická chyba: nelze připravit relé", "error", err)
		os.Exit(1)
	}

	// 7. Wiring
	metrics := NewMetrics()
	forwarder := NewForwarder(sinks, cfg.SinkQueue, cfg.SinkTimeout, logger, metrics)
	sampler := NewSampler(pipe.source, pipe.store, forwarder, metrics, logger, dev, cfg.Sampler())

	var latest LatestProvider = sampler
	if pipe.latest != nil {
		latest = pipe.latest
	}

	static, err := NewStaticFiles(cfg.StaticDir, logger)
	if err != nil {
		logger.Error("Kritická chyba: statické soubory", "error", err)
		os.Exit(1)
	}
	api := NewAPIHandler(latest, pipe.store, static, metrics, logger, APIOptions{
		Defaults:   cfg.HistoryDefaults(),
		MaxSamples: cfg.HistoryMaxSamples,
		RawHistory: cfg.HistoryRaw,
		Actuator:   actuator,
		Events:     sampler,
	})
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	go forwarder.Run(ctx)
	go sampler.Run(ctx)
	sampler.Emit(ctx, EventRestart, cfg.RestartReason)
	logger.Info("Sinky aktivní", "count", len(sinks))

	// 8. HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           CorsMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server spadl", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Chyba při vypínání serveru", "error", err)
	}
	logger.Info("Telemetry Node ukončen")
}
