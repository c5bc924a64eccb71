// Package mqttbridge evaluates form snapshots published over MQTT and
// answers with a report on a sibling topic.
//
// A front end publishes the form as JSON to <prefix>/forms/<id>/state and
// receives the engine.Report on <prefix>/forms/<id>/report.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/engine"
)

const (
	formsSegment  = "forms"
	stateSegment  = "state"
	reportSegment = "report"
)

// EngineFunc returns the engine used for the next message.
type EngineFunc func() *engine.Engine

// Bridge connects the engine to an MQTT broker.
type Bridge struct {
	cfg    config.MQTTConfig
	engine EngineFunc
	logger zerolog.Logger
	prefix string
}

// New validates the settings and prepares a bridge. Connect happens in Run.
func New(cfg config.MQTTConfig, engineFn EngineFunc, logger zerolog.Logger) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker address is required")
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: qos %d out of range", cfg.QoS)
	}
	if engineFn == nil {
		return nil, errors.New("mqtt: engine source is required")
	}
	return &Bridge{
		cfg:    cfg,
		engine: engineFn,
		logger: logger,
		prefix: strings.Trim(cfg.TopicPrefix, "/"),
	}, nil
}

// SubscriptionTopic is the wildcard filter for form snapshots.
func (b *Bridge) SubscriptionTopic() string {
	return join(b.prefix, formsSegment, "+", stateSegment)
}

// ReportTopic is where the report for formID is published.
func (b *Bridge) ReportTopic(formID string) string {
	return join(b.prefix, formsSegment, formID, reportSegment)
}

// FormID extracts the form identifier from a state topic.
func (b *Bridge) FormID(topic string) (string, bool) {
	rest := topic
	if b.prefix != "" {
		if !strings.HasPrefix(topic, b.prefix+"/") {
			return "", false
		}
		rest = strings.TrimPrefix(topic, b.prefix+"/")
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] != formsSegment || parts[2] != stateSegment || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Handle evaluates one state message. It returns the topic and payload to
// publish; ok is false when the message should be ignored.
func (b *Bridge) Handle(topic string, payload []byte) (string, []byte, bool) {
	formID, ok := b.FormID(topic)
	if !ok {
		return "", nil, false
	}
	// Empty payloads clear retained state.
	if len(strings.TrimSpace(string(payload))) == 0 {
		return "", nil, false
	}

	var (
		out []byte
		err error
	)
	var form engine.Form
	if decodeErr := json.Unmarshal(payload, &form); decodeErr != nil {
		b.logger.Warn().Err(decodeErr).Str("form", formID).Msg("mqtt: discarding malformed form")
		out, err = json.Marshal(map[string]string{"error": "malformed form: " + decodeErr.Error()})
	} else {
		out, err = json.Marshal(b.engine().Evaluate(form))
	}
	if err != nil {
		b.logger.Error().Err(err).Str("form", formID).Msg("mqtt: encode report")
		return "", nil, false
	}
	return b.ReportTopic(formID), out, true
}

// Run connects, subscribes, and serves until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	qos := byte(b.cfg.QoS)
	onMessage := func(client mqtt.Client, msg mqtt.Message) {
		topic, out, ok := b.Handle(msg.Topic(), msg.Payload())
		if !ok {
			return
		}
		token := client.Publish(topic, qos, false, out)
		go func() {
			if token.WaitTimeout(b.timeout()) && token.Error() != nil {
				b.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt: publish report failed")
			}
		}()
	}
	onConnect := func(c mqtt.Client) {
		filter := b.SubscriptionTopic()
		token := c.Subscribe(filter, qos, onMessage)
		if !token.WaitTimeout(b.timeout()) {
			b.logger.Error().Str("topic", filter).Msg("mqtt: subscribe timeout")
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Error().Err(err).Str("topic", filter).Msg("mqtt: subscribe failed")
			return
		}
		b.logger.Info().Str("topic", filter).Msg("mqtt: subscribed")
	}

	client, err := b.connect(onConnect)
	if err != nil {
		return err
	}
	<-ctx.Done()
	client.Unsubscribe(b.SubscriptionTopic()).WaitTimeout(time.Second)
	client.Disconnect(250)
	return ctx.Err()
}

func (b *Bridge) timeout() time.Duration {
	if b.cfg.ConnectTimeout.Duration > 0 {
		return b.cfg.ConnectTimeout.Duration
	}
	return 30 * time.Second
}

func (b *Bridge) clientOptions(onConnect mqtt.OnConnectHandler) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	if b.cfg.ClientID != "" {
		opts.SetClientID(b.cfg.ClientID)
	}
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	if b.cfg.KeepAlive.Duration > 0 {
		opts.SetKeepAlive(b.cfg.KeepAlive.Duration)
	}
	opts.SetConnectTimeout(b.timeout())
	opts.SetAutoReconnect(true)
	opts.OnConnect = onConnect
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn().Err(err).Msg("mqtt: connection lost")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		b.logger.Info().Msg("mqtt: reconnecting")
	})
	return opts
}

func (b *Bridge) connect(onConnect mqtt.OnConnectHandler) (mqtt.Client, error) {
	client := mqtt.NewClient(b.clientOptions(onConnect))
	token := client.Connect()
	if !token.WaitTimeout(b.timeout()) {
		return nil, fmt.Errorf("mqtt: connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect failed: %w", err)
	}
	return client, nil
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
