// Package autopaho implements mqtt.Writer and mqtt.Subscriber on top of an autopaho connection that reconnects on its
// own and restores subscriptions afterward.
package autopaho

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/mqtt"
)

// DefaultSessionExpiry is how long the broker keeps the session of a disconnected client.
const DefaultSessionExpiry = 60 * time.Second

// Options are the connection settings used by Dial.
type Options struct {
	Broker    *url.URL
	ClientID  string
	Username  string
	Password  string
	KeepAlive time.Duration

	// Will is published retained with QoS 1 by the broker to WillTopic when the connection is lost.
	WillTopic string
	Will      []byte

	// OnConnected is called after every (re-)connect once subscriptions were restored.
	OnConnected func(ctx context.Context, w mqtt.Writer)
}

// ClientConfig builds the autopaho.ClientConfig for o.
func (o Options) ClientConfig(l *slog.Logger) autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		ServerUrls:            []*url.URL{o.Broker},
		KeepAlive:             keepAliveSeconds(o.KeepAlive),
		SessionExpiryInterval: uint32(DefaultSessionExpiry / time.Second),
		ConnectUsername:       o.Username,

		OnConnectError: func(err error) {
			l.With(log.Error(err)).Error("mqtt connection error")
		},

		ClientConfig: paho.ClientConfig{
			ClientID: o.ClientID,
			OnClientError: func(err error) {
				l.With(log.Error(err)).Error("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				l := l.With(slog.Int("reason", int(d.ReasonCode)))
				if d.Properties != nil {
					l = l.With(slog.String("reason_string", d.Properties.ReasonString))
				}

				l.Warn("Disconnected from server")
			},
		},
	}

	if o.Password != "" {
		cfg.ConnectPassword = []byte(o.Password)
	}

	if o.WillTopic != "" {
		cfg.WillMessage = &paho.WillMessage{
			Topic:   o.WillTopic,
			Payload: o.Will,
			QoS:     byte(mqtt.QOSAtLeastOnce),
			Retain:  true,
		}
	}

	if o.Broker != nil && (o.Broker.Scheme == "mqtts" || o.Broker.Scheme == "ssl") {
		cfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return cfg
}

// keepAliveSeconds converts d to the whole seconds sent in CONNECT, clamped to the range the field can carry.
func keepAliveSeconds(d time.Duration) uint16 {
	seconds := d / time.Second
	switch {
	case seconds <= 0:
		return 0
	case seconds > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(seconds)
	}
}

type adapter struct {
	mu sync.Mutex

	conn *autopaho.ConnectionManager
	r    paho.Router

	subscriptions map[string]paho.SubscribeOptions
	onConnected   func(ctx context.Context, w mqtt.Writer)

	log *slog.Logger
}

var _ mqtt.Writer = &adapter{}
var _ mqtt.Subscriber = &adapter{}

// Dial connects to the broker in o and waits for the first connection. The returned func disconnects.
func Dial(ctx context.Context, o Options) (mqtt.Writer, mqtt.Subscriber, func(ctx context.Context) error, error) {
	if o.Broker == nil {
		return nil, nil, nil, fmt.Errorf("mqtt: no broker")
	}

	a := newAdapter()
	a.onConnected = o.OnConnected
	a.log = a.log.With(slog.String("broker", o.Broker.Redacted()))

	return a.dial(ctx, o.ClientConfig(a.log))
}

// DialMQTT connects with a caller-built config. config.OnConnectionUp is still called after subscriptions are
// restored.
func DialMQTT(ctx context.Context, config autopaho.ClientConfig) (mqtt.Writer, mqtt.Subscriber, func(ctx context.Context) error, error) {
	return newAdapter().dial(ctx, config)
}

func newAdapter() *adapter {
	return &adapter{
		r: paho.NewStandardRouter(),

		subscriptions: map[string]paho.SubscribeOptions{},

		log: log.ForComponent("autopaho"),
	}
}

func (a *adapter) dial(ctx context.Context, config autopaho.ClientConfig) (mqtt.Writer, mqtt.Subscriber, func(ctx context.Context) error, error) {
	originalOnConnUp := config.OnConnectionUp
	config.OnConnectionUp = func(manager *autopaho.ConnectionManager, connack *paho.Connack) {
		a.onReconnect(ctx)

		if originalOnConnUp != nil {
			originalOnConnUp(manager, connack)
		}

		if a.onConnected != nil {
			// Publishing blocks on the connection, which is not usable from inside this callback.
			go a.onConnected(ctx, a)
		}
	}

	// Lock the adapter before starting the connection so the first OnConnectionUp callback (which calls a.onReconnect)
	// blocks until after a.conn is assigned.
	a.mu.Lock()
	a.log.Info("Connecting to mqtt broker")
	conn, err := autopaho.NewConnection(ctx, config)
	if err != nil {
		a.mu.Unlock()
		return nil, nil, nil, err
	}

	a.conn = conn
	a.mu.Unlock()

	a.log.Debug("Waiting for connection to be ready")
	if err = conn.AwaitConnection(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("mqtt: wait for connection: %w", err)
	}

	a.log.Info("Connected to mqtt broker")
	conn.AddOnPublishReceived(func(rx autopaho.PublishReceived) (bool, error) {
		a.r.Route(rx.Packet.Packet())
		return true, nil
	})

	return a, a, conn.Disconnect, nil
}

func (a *adapter) onReconnect(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.subscriptions) == 0 {
		return
	}

	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, 0, len(a.subscriptions)),
	}

	for _, s := range a.subscriptions {
		sub.Subscriptions = append(sub.Subscriptions, s)
	}

	a.log.With(slog.Int("count", len(sub.Subscriptions))).Debug("Reconnected to MQTT. Re-sending subscriptions.")
	if _, err := a.conn.Subscribe(ctx, sub); err != nil {
		a.log.With(log.Error(err)).Error("Failed to re-subscribe to mqtt topics")
	}
}

func (a *adapter) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	a.log.With(slog.String("topic", topic), slog.Any("options", options)).Log(ctx, log.LevelTrace, "Publishing payload", slog.String("payload", string(value)))

	_, err := a.conn.Publish(ctx, &paho.Publish{
		QoS:     uint8(options.QoS),
		Retain:  options.Retain,
		Topic:   topic,
		Payload: value,
	})

	return err
}

func (a *adapter) Subscribe(ctx context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(subscriptions) == 0 {
		return nil
	}

	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, len(subscriptions)),
	}

	for i, s := range subscriptions {
		opts := subscribeOptions(s)

		a.subscriptions[s.Topic] = opts
		sub.Subscriptions[i] = opts

		a.r.RegisterHandler(s.Topic, func(publish *paho.Publish) {
			handler.ServeMQTT(a, publish.Topic, publish.Payload)
		})
	}

	a.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing to MQTT Topic(s)")
	_, err := a.conn.Subscribe(ctx, sub)
	return err
}

func (a *adapter) Unsubscribe(ctx context.Context, topics ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, t := range topics {
		delete(a.subscriptions, t)
		a.r.UnregisterHandler(t)
	}

	a.log.With(slog.Any("topics", topics)).Debug("Unsubscribing from MQTT Topic(s)")
	_, err := a.conn.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: topics,
	})

	return err
}

func subscribeOptions(s mqtt.Subscription) paho.SubscribeOptions {
	return paho.SubscribeOptions{
		Topic:             s.Topic,
		QoS:               uint8(s.Options.QoS),
		RetainHandling:    uint8(s.Options.RetainHandling),
		NoLocal:           s.Options.NoLocal,
		RetainAsPublished: s.Options.RetainAsPublished,
	}
}
