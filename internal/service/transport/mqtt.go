package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"posestream/internal/logger"
	"posestream/internal/service/queue"
)

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTPublisher publishes every message to one broker topic. It behaves as
// a single client of the fanout; broker subscribers each get every message.
type MQTTPublisher struct {
	broker   string
	topic    string
	clientID string
	fanout   queue.Fanout
	registry *Registry
	logger   *logger.Logger

	client mqtt.Client

	mu        sync.Mutex
	connected bool
	done      chan struct{}
	cancel    context.CancelFunc
}

func NewMQTTPublisher(broker, topic, clientID string, fanout queue.Fanout, registry *Registry, logger *logger.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		fanout:   fanout,
		registry: registry,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Listen connects to the broker.
func (p *MQTTPublisher) Listen() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("MQTT connection established with %s", p.broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection to %s timed out", p.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection to %s failed: %w", p.broker, err)
	}
	p.client = client
	p.setConnected(true)
	return nil
}

// Serve publishes until the queue shuts down or ctx is cancelled. Messages
// taken while the broker is unreachable are dropped.
func (p *MQTTPublisher) Serve(ctx context.Context) error {
	if p.client == nil {
		return errors.New("mqtt publisher is not connected")
	}
	defer close(p.done)

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	id, q := p.fanout.Subscribe()
	defer p.fanout.Unsubscribe(id)
	p.registry.Add(id, p.Name(), p.broker)
	defer p.registry.Remove(id)

	err := drain(ctx, id, q, p.registry, func(msg []byte) error {
		if !p.isConnected() {
			p.logger.Debug("MQTT not connected, dropping message")
			return nil
		}
		token := p.client.Publish(p.topic, 0, false, msg)
		if !token.WaitTimeout(mqttPublishTimeout) {
			p.logger.Warning("MQTT publish to %s timed out", p.topic)
			return nil
		}
		if err := token.Error(); err != nil {
			p.logger.Warning("MQTT publish to %s failed: %v", p.topic, err)
		}
		return nil
	})
	p.logger.Debug("MQTT publisher stopped: %s", endReason(err))
	if errors.Is(err, queue.ErrShutdown) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown waits for the queue to drain, then disconnects.
func (p *MQTTPublisher) Shutdown(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	var err error
	select {
	case <-p.done:
	case <-ctx.Done():
		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Unlock()
		err = ctx.Err()
	}
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected")
	}
	p.setConnected(false)
	return err
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
