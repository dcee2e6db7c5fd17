package ingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Config"
	"gitlab.com/maplesense1/irr.soil_server/src/production/IRR.IngestorService/client"
	logger "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Logger"
	metrics "gitlab.com/maplesense1/irr.soil_server/src/production/IRR.Metrics"
)

// Forwarder delivers one reading payload to the API Service.
type Forwarder interface {
	CreateReading(ctx context.Context, body []byte) error
}

// inbound is a received message waiting to be forwarded
type inbound struct {
	Device     string
	Topic      string
	Body       []byte
	ReceivedAt time.Time
}

type Ingestor struct {
	cfg        config.MQTTConfig
	api        Forwarder
	metrics    *metrics.Metrics
	mqttClient mqtt.Client
	msgCh      chan inbound
	stopping   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     *logger.Logger
}

// New creates an ingestor. mx may be nil.
func New(cfg config.MQTTConfig, api Forwarder, mx *metrics.Metrics, log *logger.Logger) *Ingestor {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	return &Ingestor{
		cfg:      cfg,
		api:      api,
		metrics:  mx,
		msgCh:    make(chan inbound, size),
		stopping: make(chan struct{}),
		logger:   log.WithComponent("mqtt-ingestor"),
	}
}

// Start connects to the broker, retrying the first connection with
// exponential backoff, and starts the forwarding worker.
func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.BrokerURL()).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.subscription()
		i.logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	err := backoff.RetryNotify(func() error {
		tk := i.mqttClient.Connect()
		tk.Wait()
		return tk.Error()
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		i.logger.Warn().Err(err).Dur("retry_in", next).Msg("MQTT connect failed, retrying")
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	i.run(ctx)
	return nil
}

// run starts the forwarding worker.
func (i *Ingestor) run(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.forwardLoop(ctx)
	}()
}

// Stop disconnects from the broker and forwards what is already queued.
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		if i.mqttClient != nil && i.mqttClient.IsConnected() {
			i.mqttClient.Disconnect(500)
		}
		close(i.stopping)
	})
	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// QueueDepth is the number of messages waiting to be forwarded.
func (i *Ingestor) QueueDepth() int {
	return len(i.msgCh)
}

func (i *Ingestor) subscription() string {
	if i.cfg.SharedGroup != "" {
		return fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, i.cfg.Topic)
	}
	return i.cfg.Topic
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	device := deviceFromTopic(i.cfg.Topic, m.Topic())
	i.logger.Debug().Str("topic", m.Topic()).Str("device", device).Msg("Received MQTT message")

	var probe map[string]interface{}
	if err := json.Unmarshal(m.Payload(), &probe); err != nil || probe == nil {
		i.observe("invalid")
		i.publishError(device, "invalid_payload", "payload must be a JSON object", nil)
		return
	}

	msg := inbound{
		Device:     device,
		Topic:      m.Topic(),
		Body:       append([]byte(nil), m.Payload()...),
		ReceivedAt: time.Now().UTC(),
	}

	select {
	case i.msgCh <- msg:
	case <-i.stopping:
		i.logger.Warn().Str("device", device).Msg("Dropping message received during shutdown")
	}
}

// forwardLoop sends queued readings one at a time, in arrival order.
func (i *Ingestor) forwardLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-i.msgCh:
			i.forward(ctx, msg)
		case <-i.stopping:
			for {
				select {
				case msg := <-i.msgCh:
					i.forward(ctx, msg)
				default:
					return
				}
			}
		}
	}
}

func (i *Ingestor) forward(ctx context.Context, msg inbound) {
	err := i.api.CreateReading(ctx, msg.Body)
	if err == nil {
		i.observe("forwarded")
		i.logger.Debug().Str("device", msg.Device).Msg("Reading forwarded")
		return
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Permanent() {
		i.observe("rejected")
		i.logger.Warn().Str("device", msg.Device).Int("status", apiErr.StatusCode).Msg("API rejected reading")
		i.publishError(msg.Device, "reading_rejected", apiErr.Message, apiErr.Violations)
		return
	}

	i.observe("failed")
	i.logger.Error().Err(err).Str("device", msg.Device).Msg("Error forwarding reading to API")
	i.publishError(msg.Device, "forward_failed", err.Error(), nil)
}

func (i *Ingestor) observe(outcome string) {
	if i.metrics != nil {
		i.metrics.MessagesForwarded.WithLabelValues(outcome).Inc()
	}
}

// publishError publishes feedback for the device on <error topic>/<device>
func (i *Ingestor) publishError(device, errorType, message string, details interface{}) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	errorPayload := map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"device":     device,
		"timestamp":  time.Now().UTC(),
	}
	if details != nil {
		errorPayload["details"] = details
	}

	payloadJSON, err := json.Marshal(errorPayload)
	if err != nil {
		i.logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := fmt.Sprintf("%s/%s", strings.TrimRight(i.cfg.ErrorTopic, "/"), device)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.Wait() && token.Error() != nil {
		i.logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	} else {
		i.logger.Info().Str("topic", errorTopic).Str("message", message).Msg("Published error")
	}
}

// deviceFromTopic returns the topic level matched by the first single-level
// wildcard in filter, or "unknown".
func deviceFromTopic(filter, topic string) string {
	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")
	for idx, p := range fparts {
		if p == "+" && idx < len(tparts) && tparts[idx] != "" {
			return tparts[idx]
		}
	}
	return "unknown"
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
