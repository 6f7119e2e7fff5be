package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttWriteTimeout omezuje, jak dlouho Publish čeká na odchozí frontu klienta.
// Výchozí hodnota paho je 30 s, to by brzdilo logování i vzorkování.
const mqttWriteTimeout = 2 * time.Second

// newMQTTClient připraví klienta s automatickým znovupřipojením.
// Connect neblokuje. Publikace QoS 0 před navázáním spojení se zahodí a token
// nedoběhne, volající proto vždy čeká s timeoutem.
func newMQTTClient(broker, clientID string) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWriteTimeout(mqttWriteTimeout)

	client := mqtt.NewClient(opts)
	client.Connect()
	return client
}

// MQTTSink publikuje stejné obálky jako HTTPSink do topiců
// <prefix>/<deviceId>/datos a <prefix>/<deviceId>/estados. QoS 0, bez retain.
type MQTTSink struct {
	client mqtt.Client
	device Device
	prefix string
}

func NewMQTTSink(client mqtt.Client, dev Device, prefix string) *MQTTSink {
	return &MQTTSink{client: client, device: dev, prefix: prefix}
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) topic(kind string) string {
	return fmt.Sprintf("%s/%s/%s", m.prefix, m.device.ID, kind)
}

func (m *MQTTSink) SendSample(ctx context.Context, s Sample) error {
	return m.publish(ctx, m.topic("datos"), sampleEnvelope(m.device, s))
}

func (m *MQTTSink) SendEvent(ctx context.Context, ev Event) error {
	return m.publish(ctx, m.topic("estados"), eventEnvelope(ev))
}

// publish čeká na token nejdéle do vypršení ctx.
func (m *MQTTSink) publish(ctx context.Context, topic string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &SinkError{Sink: m.Name(), Err: fmt.Errorf("marshal: %w", err)}
	}

	token := m.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return &SinkError{Sink: m.Name(), Err: fmt.Errorf("publish %s: %w", topic, err)}
		}
		return nil
	case <-ctx.Done():
		return &SinkError{Sink: m.Name(), Err: fmt.Errorf("publish %s: %w", topic, ctx.Err())}
	}
}

var _ Sink = (*MQTTSink)(nil)
