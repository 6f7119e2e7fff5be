package main

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttLogWriter je io.Writer, který posílá každý log řádek do topicu logs/<clientId>.
// Je to doplněk ke stdout: bez otevřeného spojení se řádek zahodí.
type MqttLogWriter struct {
	client mqtt.Client
	topic  string
}

func NewMqttLogWriter(client mqtt.Client, clientID string) *MqttLogWriter {
	return &MqttLogWriter{client: client, topic: "logs/" + clientID}
}

// Write nečeká na token. Publish blokuje nejvýš mqttWriteTimeout (viz newMQTTClient),
// takže zaseknutý broker zdrží logující goroutinu jen omezeně.
func (w *MqttLogWriter) Write(p []byte) (int, error) {
	if !w.client.IsConnectionOpen() {
		return len(p), nil
	}
	// slog buffer po návratu recykluje.
	w.client.Publish(w.topic, 0, false, append([]byte(nil), p...))
	return len(p), nil
}
