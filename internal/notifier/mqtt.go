package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTNotifier publishes notifications to an MQTT topic so Home Assistant
// style consumers can pick them up
type MQTTNotifier struct {
	client   mqtt.Client
	topic    string
	minLevel Level
	loc      *time.Location
	logger   *zap.Logger
}

// NewMQTTNotifier connects to the broker and returns an MQTT channel
func NewMQTTNotifier(broker, username, password, topic string, minLevel Level, loc *time.Location, logger *zap.Logger) (*MQTTNotifier, error) {
	if broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID("billbot")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &MQTTNotifier{
		client:   client,
		topic:    topic,
		minLevel: minLevel,
		loc:      loc,
		logger:   logger,
	}, nil
}

func (m *MQTTNotifier) Name() string    { return "mqtt" }
func (m *MQTTNotifier) MinLevel() Level { return m.minLevel }

// Send publishes the generic JSON payload to the notification topic
func (m *MQTTNotifier) Send(ctx context.Context, n Notification) error {
	payload := webhookPayload{
		Timestamp: time.Now().In(m.loc).Format(time.RFC3339),
		Title:     n.Title,
		Message:   n.Message,
		Level:     n.Level.String(),
		BotName:   botName,
	}

	if n.Record != nil {
		payload.Data = &webhookData{
			RecordsCount: 1,
			Records: []webhookRecord{{
				Balance:   n.Record.Balance,
				CreatedAt: n.Record.CreatedAt.Format(time.RFC3339),
			}},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	token := m.client.Publish(m.topic, 0, false, body)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", m.topic, err)
	}

	return nil
}

// SendChart is not supported over MQTT
func (m *MQTTNotifier) SendChart(ctx context.Context, chartPath, description string) error {
	m.logger.Info("MQTT 不支援圖表發送，跳過", zap.String("description", description))
	return nil
}

// Close disconnects from the broker
func (m *MQTTNotifier) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
