package mqttpub

import (
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/srg/blebridge/pkg/config"
)

const (
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultReconnectInterval = 5 * time.Second
	defaultMaxReconnect      = 2 * time.Minute
	defaultQueueSize         = 256

	stateOnline  = "online"
	stateOffline = "offline"
)

// NewClient builds a paho client for cfg with auto-reconnect and an "offline"
// last will on the state topic. onConnect runs after every (re)connect.
func NewClient(cfg config.MQTTConfig, onConnect func()) pahomqtt.Client {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultReconnectInterval)
	opts.SetMaxReconnectInterval(defaultMaxReconnect)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetKeepAlive(defaultKeepAlive)

	topics := Topics{Prefix: strings.TrimRight(cfg.TopicPrefix, "/")}
	opts.SetWill(topics.State(), stateOffline, byte(cfg.QoS), true)

	if onConnect != nil {
		opts.SetOnConnectHandler(func(_ pahomqtt.Client) { onConnect() })
	}

	return pahomqtt.NewClient(opts)
}
