// internal/remote/bridge.go
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/gfalqueto/crywatch/internal/detect"
)

// Config holds MQTT bridge settings.
type Config struct {
	Broker      string // host:port
	TopicPrefix string // e.g. "crywatch"
	ClientID    string // empty for a generated ID
}

// Event is the JSON payload published after each detection cycle.
type Event struct {
	Session string    `json:"session"`
	Time    time.Time `json:"time"`
	Energy  float64   `json:"energy"`
	Crying  bool      `json:"crying"`
	Forced  bool      `json:"forced,omitempty"`
}

// Bridge connects the monitor to an MQTT broker: commands arrive on
// <prefix>/cmd, replies go to <prefix>/reply, and detection events are
// published on <prefix>/events. The bridge is optional; its failures
// are reported but never stop the detection loop.
type Bridge struct {
	cfg        Config
	dispatcher *Dispatcher
	sessionID  string
	logger     *slog.Logger

	client *paho.Client
}

// NewBridge creates a bridge. sessionID tags published events; pass the
// archive session ID so events and archive rows correlate.
func NewBridge(cfg Config, dispatcher *Dispatcher, sessionID string, logger *slog.Logger) *Bridge {
	if cfg.ClientID == "" {
		cfg.ClientID = "crywatch-" + uuid.NewString()[:8]
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:        cfg,
		dispatcher: dispatcher,
		sessionID:  sessionID,
		logger:     logger,
	}
}

func (b *Bridge) cmdTopic() string    { return b.cfg.TopicPrefix + "/cmd" }
func (b *Bridge) replyTopic() string  { return b.cfg.TopicPrefix + "/reply" }
func (b *Bridge) eventsTopic() string { return b.cfg.TopicPrefix + "/events" }

// Connect dials the broker and subscribes to the command topic.
func (b *Bridge) Connect(ctx context.Context) error {
	conn, err := net.Dial("tcp", b.cfg.Broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: b.cfg.ClientID,
		OnClientError: func(err error) {
			b.logger.Warn("mqtt client error", "error", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			b.logger.Warn("mqtt server disconnect", "reason", d.ReasonCode)
		},
	})

	client.AddOnPublishReceived(func(pb paho.PublishReceived) (bool, error) {
		if pb.Packet.Topic != b.cmdTopic() {
			return false, nil
		}
		b.handleCommand(ctx, string(pb.Packet.Payload))
		return true, nil
	})

	if _, err = client.Connect(ctx, &paho.Connect{
		ClientID:   b.cfg.ClientID,
		CleanStart: true,
		KeepAlive:  30,
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("mqtt connect: %w", err)
	}

	if _, err = client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: b.cmdTopic(),
			QoS:   1,
		}},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("mqtt subscribe %s: %w", b.cmdTopic(), err)
	}

	b.client = client
	b.logger.Info("mqtt connected", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID)
	return nil
}

// handleCommand dispatches one command and publishes the reply.
func (b *Bridge) handleCommand(ctx context.Context, command string) {
	b.logger.Info("command received", "command", command)
	reply := b.dispatcher.Dispatch(ctx, command)

	if err := b.publish(ctx, b.replyTopic(), []byte(reply)); err != nil {
		b.logger.Warn("publish reply failed", "error", err)
	}
}

// OnCycle publishes a detection event. Quiet cycles are skipped unless
// forced, so the events topic carries detections, not a sample stream.
func (b *Bridge) OnCycle(result detect.CycleResult) {
	if !result.Crying && !result.Forced {
		return
	}

	payload, err := json.Marshal(Event{
		Session: b.sessionID,
		Time:    result.Time,
		Energy:  result.Energy,
		Crying:  result.Crying,
		Forced:  result.Forced,
	})
	if err != nil {
		b.logger.Warn("marshal event failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.publish(ctx, b.eventsTopic(), payload); err != nil {
		b.logger.Warn("publish event failed", "error", err)
	}
}

func (b *Bridge) publish(ctx context.Context, topic string, payload []byte) error {
	if b.client == nil {
		return fmt.Errorf("not connected")
	}
	_, err := b.client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	return err
}

// Close disconnects from the broker.
func (b *Bridge) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
