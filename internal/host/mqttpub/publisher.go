// Package mqttpub mirrors the host bridge onto an MQTT broker: accessory
// descriptions and characteristic values are published as retained messages,
// and write/identify commands received from the broker are routed back into
// the bridge.
package mqttpub

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/srg/blebridge/internal/groutine"
	"github.com/srg/blebridge/internal/host"
	"github.com/srg/blebridge/internal/ringchan"
	"github.com/srg/blebridge/pkg/config"
)

// Client is the subset of pahomqtt.Client the publisher uses.
type Client interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
}

// Commander routes broker commands into the host bridge. *host.Bridge implements it.
type Commander interface {
	Accessories() []*host.Accessory
	SetValue(ctx context.Context, uuid, serviceClass, charClass string, value any) error
	Identify(uuid string) error
}

// Options configures a Publisher.
type Options struct {
	TopicPrefix string
	QoS         byte
	// Timeout bounds broker round trips and command execution.
	Timeout time.Duration
}

type message struct {
	topic   string
	payload string
}

// Publisher implements host.Observer on top of an MQTT client.
// Observer callbacks only enqueue; a single worker goroutine talks to the broker.
type Publisher struct {
	client    Client
	commander Commander
	logger    *logrus.Logger
	opts      Options
	topics    Topics

	// set when the client runs handleConnect itself on every (re)connect
	connectHook bool

	queue  *ringchan.RingChannel[message]
	group  groutine.Group
	mu     sync.Mutex
	cancel context.CancelFunc
}

var _ host.Observer = (*Publisher)(nil)

// New creates a publisher over an existing client.
func New(client Client, commander Commander, logger *logrus.Logger, opts Options) *Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.TopicPrefix = strings.TrimRight(opts.TopicPrefix, "/")

	return &Publisher{
		client:    client,
		commander: commander,
		logger:    logger,
		opts:      opts,
		topics:    Topics{Prefix: opts.TopicPrefix},
		queue:     ringchan.New[message](defaultQueueSize),
	}
}

// NewFromConfig creates a publisher with its own paho client built from cfg.
// Command subscriptions and the accessory snapshot are renewed on every reconnect.
func NewFromConfig(cfg config.MQTTConfig, commander Commander, logger *logrus.Logger) *Publisher {
	p := New(nil, commander, logger, Options{
		TopicPrefix: cfg.TopicPrefix,
		QoS:         byte(cfg.QoS),
		Timeout:     cfg.Timeout,
	})
	p.client = NewClient(cfg, p.handleConnect)
	p.connectHook = true
	return p
}

// Start connects to the broker and starts the publishing worker. It returns
// once the first connection is established or fails.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: already started", ErrConnectionFailed)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	if !p.client.IsConnected() {
		token := p.client.Connect()
		if !token.WaitTimeout(p.opts.Timeout) {
			p.abortStart()
			return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, p.opts.Timeout)
		}
		if err := token.Error(); err != nil {
			p.abortStart()
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	p.group.Go(ctx, "mqtt-publisher", p.run)

	if !p.connectHook {
		p.handleConnect()
	}

	p.logger.WithField("prefix", p.opts.TopicPrefix).Info("MQTT mirror started")
	return nil
}

// abortStart stops the client's background connect retries after a failed
// Start and allows Start to be called again.
func (p *Publisher) abortStart() {
	p.client.Disconnect(0)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Close publishes the offline state, stops the worker and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	p.group.Wait()

	if p.client.IsConnected() {
		if err := p.publish(message{topic: p.topics.State(), payload: stateOffline}); err != nil {
			p.logger.WithError(err).Debug("Failed to publish offline state")
		}
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
	p.queue.Close()
	return nil
}

func (p *Publisher) handleConnect() {
	subs := map[string]pahomqtt.MessageHandler{
		p.topics.SetFilter():      p.handleSet,
		p.topics.IdentifyFilter(): p.handleIdentify,
	}
	for filter, handler := range subs {
		token := p.client.Subscribe(filter, p.opts.QoS, handler)
		if !token.WaitTimeout(p.opts.Timeout) || token.Error() != nil {
			p.logger.WithFields(logrus.Fields{
				"topic": filter,
				"error": token.Error(),
			}).Error(ErrSubscribeFailed.Error())
		}
	}

	p.enqueue(p.topics.State(), stateOnline)
	for _, acc := range p.commander.Accessories() {
		p.AccessoryAdded(acc)
	}
}

// AccessoryAdded publishes the accessory description and its known values.
func (p *Publisher) AccessoryAdded(acc *host.Accessory) {
	p.enqueue(p.topics.Name(acc.UUID()), acc.DisplayName())
	p.AccessoryChanged(acc)
	for _, svc := range acc.Services() {
		for _, ch := range svc.Characteristics() {
			if v := ch.Value(); v != nil {
				p.enqueue(p.topics.Value(acc.UUID(), svc.Class(), ch.Class()), FormatValue(v))
			}
		}
	}
}

// AccessoryRemoved clears every retained topic of the accessory.
func (p *Publisher) AccessoryRemoved(acc *host.Accessory) {
	for _, svc := range acc.Services() {
		for _, ch := range svc.Characteristics() {
			p.enqueue(p.topics.Value(acc.UUID(), svc.Class(), ch.Class()), "")
		}
	}
	p.enqueue(p.topics.Services(acc.UUID()), "")
	p.enqueue(p.topics.Name(acc.UUID()), "")
}

// AccessoryChanged republishes the service list.
func (p *Publisher) AccessoryChanged(acc *host.Accessory) {
	classes := make([]string, 0)
	for _, svc := range acc.Services() {
		classes = append(classes, svc.Class())
	}
	p.enqueue(p.topics.Services(acc.UUID()), strings.Join(classes, ","))
}

// ValueChanged publishes a characteristic value.
func (p *Publisher) ValueChanged(acc *host.Accessory, svc *host.Service, ch *host.Characteristic, value any) {
	p.enqueue(p.topics.Value(acc.UUID(), svc.Class(), ch.Class()), FormatValue(value))
}

func (p *Publisher) enqueue(topic, payload string) {
	if p.queue.Send(message{topic: topic, payload: payload}) {
		p.logger.WithField("topic", topic).Warn("MQTT queue full, dropped oldest message")
	}
}

func (p *Publisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.queue.C():
			if !ok {
				return
			}
			if err := p.publish(msg); err != nil {
				p.logger.WithFields(logrus.Fields{
					"topic": msg.topic,
					"error": err,
				}).Debug("MQTT publish failed")
			}
		}
	}
}

func (p *Publisher) publish(msg message) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	token := p.client.Publish(msg.topic, p.opts.QoS, true, msg.payload)
	if !token.WaitTimeout(p.opts.Timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, p.opts.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (p *Publisher) handleSet(_ pahomqtt.Client, msg pahomqtt.Message) {
	uuid, svc, ch, ok := p.topics.ParseSet(msg.Topic())
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	defer cancel()

	fields := logrus.Fields{
		"uuid":           uuid,
		"service":        svc,
		"characteristic": ch,
	}
	if err := p.commander.SetValue(ctx, uuid, svc, ch, string(msg.Payload())); err != nil {
		fields["error"] = err
		p.logger.WithFields(fields).Warn("MQTT write rejected")
		return
	}
	p.logger.WithFields(fields).Debug("MQTT write applied")
}

func (p *Publisher) handleIdentify(_ pahomqtt.Client, msg pahomqtt.Message) {
	uuid, ok := p.topics.ParseIdentify(msg.Topic())
	if !ok {
		return
	}
	if err := p.commander.Identify(uuid); err != nil {
		p.logger.WithFields(logrus.Fields{
			"uuid":  uuid,
			"error": err,
		}).Warn("MQTT identify rejected")
	}
}

// FormatValue renders a characteristic value as an MQTT payload. Byte slices
// are hex encoded.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return hex.EncodeToString(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
