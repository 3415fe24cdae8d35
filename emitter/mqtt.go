// Package emitter publishes accepted rounds and intermissions to MQTT.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/soocke/duck-haptics-go/config"
	"github.com/soocke/duck-haptics-go/domain/round"
)

// RoundEvent is the JSON payload of one published outcome.
type RoundEvent struct {
	Session string        `json:"session"`
	Kind    string        `json:"kind"`
	Color   string        `json:"color,omitempty"`
	At      time.Time     `json:"at"`
	Score   float64       `json:"score,omitempty"`
	Players []PlayerEvent `json:"players,omitempty"`
}

// PlayerEvent is one player's share of a RoundEvent.
type PlayerEvent struct {
	ID               string  `json:"id"`
	Won              bool    `json:"won"`
	Intensity        float64 `json:"intensity"`
	VibrationSeconds float64 `json:"vibration_seconds,omitempty"`
}

// NewRoundEvent converts an arbiter outcome.
func NewRoundEvent(session string, o round.Outcome) RoundEvent {
	ev := RoundEvent{Session: session, Kind: o.Kind.String(), Color: o.Color, At: o.At.UTC()}
	if o.Kind == round.KindAccepted {
		ev.Score = o.Result.Score
	}
	for _, u := range o.Updates {
		pe := PlayerEvent{ID: u.PlayerID, Won: u.Won, Intensity: u.Intensity}
		if u.Event != nil {
			pe.VibrationSeconds = u.Event.Duration.Seconds()
		}
		ev.Players = append(ev.Players, pe)
	}
	return ev
}

// MQTTEmitter publishes round events to a broker.
type MQTTEmitter struct {
	cfg     config.MQTTConfig
	session string
	logger  *slog.Logger
	client  mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTTEmitter creates an emitter; call Connect before publishing.
func NewMQTTEmitter(logger *slog.Logger, cfg config.MQTTConfig, session string) *MQTTEmitter {
	if cfg.Topic == "" {
		cfg.Topic = config.DefaultConfig().MQTT.Topic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "duck-haptics"
	}
	return &MQTTEmitter{cfg: cfg, session: session, logger: logger}
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}

// Connect establishes the broker connection with automatic reconnects.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(e.cfg.Broker))
	opts.SetClientID(fmt.Sprintf("%s-%s", e.cfg.ClientID, shortID(e.session)))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		if e.logger != nil {
			e.logger.Info("mqtt connection established", "broker", e.cfg.Broker)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		if e.logger != nil {
			e.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
		}
	}
	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	deadline := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		deadline = time.Until(dl)
	}
	if !token.WaitTimeout(deadline) {
		e.abort()
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		e.abort()
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// abort stops a client that never connected so its retry loop exits.
func (e *MQTTEmitter) abort() {
	e.client.Disconnect(0)
	e.client = nil
	e.setConnected(false)
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

// Topic returns the topic an outcome of kind is published on.
func (e *MQTTEmitter) Topic(kind round.Kind) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(e.cfg.Topic, "/"), kind)
}

// Publish sends accepted and intermission outcomes; other kinds are ignored.
func (e *MQTTEmitter) Publish(o round.Outcome) error {
	if o.Kind != round.KindAccepted && o.Kind != round.KindIntermission {
		return nil
	}
	e.mu.RLock()
	connected := e.connected
	e.mu.RUnlock()
	if !connected || e.client == nil {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(NewRoundEvent(e.session, o))
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal round event: %w", err)
	}
	topic := e.Topic(o.Kind)
	token := e.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}
	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	if e.logger != nil {
		e.logger.Debug("round event published", "topic", topic, "size", len(payload))
	}
	return nil
}

// Listener adapts Publish to a round listener that logs failures.
func (e *MQTTEmitter) Listener() round.Listener {
	return func(o round.Outcome) {
		if err := e.Publish(o); err != nil && e.logger != nil {
			e.logger.Warn("round event not published", "error", err)
		}
	}
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Stats returns published and failed counts.
func (e *MQTTEmitter) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

// Close disconnects from the broker.
func (e *MQTTEmitter) Close() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		if e.logger != nil {
			e.logger.Info("mqtt disconnected")
		}
	}
	e.setConnected(false)
}
