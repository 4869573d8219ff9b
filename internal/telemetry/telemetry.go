// internal/telemetry/telemetry.go

// Package telemetry mirrors the view stream to an MQTT broker and accepts
// commands from it.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/AlverezYari/skyframe/internal/config"
	"github.com/AlverezYari/skyframe/internal/messages"
	"github.com/AlverezYari/skyframe/internal/server"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// Client is the part of mqtt.Client used by the publisher.
type Client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Hub is where the publisher receives the outbound stream.
type Hub interface {
	Subscribe() (int, <-chan server.Envelope)
	Unsubscribe(id int)
}

// NewClient builds a paho client for cfg. A random client id is used when
// none is configured.
func NewClient(cfg config.MqttConfig) mqtt.Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "skyframe-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	return mqtt.NewClient(opts)
}

type Publisher struct {
	client  Client
	prefix  string
	inbound func(messages.StateMessage) error
	logger  *zap.Logger
}

func New(client Client, prefix string, inbound func(messages.StateMessage) error, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, prefix: prefix, inbound: inbound, logger: logger}
}

func (p *Publisher) ViewTopic() string    { return p.prefix + "/view" }
func (p *Publisher) CommandTopic() string { return p.prefix + "/command" }

// Run connects, subscribes to the command topic and publishes every view
// until ctx ends or the hub stops.
func (p *Publisher) Run(ctx context.Context, hub Hub) error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer p.client.Disconnect(250)

	if token := p.client.Subscribe(p.CommandTopic(), 1, p.handleCommand); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", p.CommandTopic(), token.Error())
	}
	p.logger.Info("mqtt connected", zap.String("prefix", p.prefix))

	id, queue := hub.Subscribe()
	defer func() { hub.Unsubscribe(id) }()
	p.requestView()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-queue:
			if !ok {
				return nil
			}
			switch env.Message.Type {
			case messages.ClientReconnect:
				p.logger.Warn("publisher fell behind, resubscribing")
				hub.Unsubscribe(id)
				id, queue = hub.Subscribe()
				p.requestView()
			case messages.ClientView:
				p.publish(p.ViewTopic(), env.Payload)
			}
		}
	}
}

func (p *Publisher) publish(topic string, payload []byte) {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (p *Publisher) requestView() {
	if err := p.inbound(messages.NewClientConnected()); err != nil {
		p.logger.Debug("inbound closed", zap.Error(err))
	}
}

func (p *Publisher) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	command, err := messages.DecodeClientMessage(msg.Payload())
	if err != nil {
		p.logger.Warn("dropping mqtt command", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if err := p.inbound(command); err != nil {
		p.logger.Debug("inbound closed", zap.Error(err))
	}
}
