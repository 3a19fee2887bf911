package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/energydash/internal/config"
	"github.com/jgoulah/energydash/internal/meter"
	"github.com/jgoulah/energydash/pkg/models"
)

// how long New and the delivery logger wait on the broker
var (
	connectWait = 5 * time.Second
	publishWait = 5 * time.Second
)

// Publisher mirrors dashboard data to MQTT and Home Assistant
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	haConfig    config.HAConfig
	http        *http.Client
	log         *logrus.Logger
}

// New creates a publisher. Either side may be disabled; a publisher with both
// disabled is valid and drops everything.
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig, log *logrus.Logger) (*Publisher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if haCfg.Enabled {
		if haCfg.URL == "" {
			return nil, fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if haCfg.Token == "" {
			return nil, fmt.Errorf("Home Assistant token is required when enabled")
		}
		if haCfg.EntityID == "" {
			return nil, fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}

	p := &Publisher{
		haConfig: haCfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}

	if !mqttCfg.Enabled {
		return p, nil
	}
	if mqttCfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	p.topicPrefix = mqttCfg.GetTopicPrefix()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
	opts.SetClientID(mqttCfg.GetClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", mqttCfg.Broker).Info("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("Lost MQTT connection")
	})
	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
	}
	if mqttCfg.Password != "" {
		opts.SetPassword(mqttCfg.Password)
	}

	p.client = mqtt.NewClient(opts)
	// with connect retry the token only completes once the broker answers
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		log.WithField("broker", mqttCfg.Broker).Warn("MQTT broker not reachable yet, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return p, nil
}

// ReadingMessage is the JSON body published on <prefix>/running_total
type ReadingMessage struct {
	Session string `json:"session"`
	meter.Reading
}

// Topic returns the running-total topic, empty when MQTT is disabled
func (p *Publisher) Topic() string {
	if p.client == nil {
		return ""
	}
	return p.topicPrefix + "/running_total"
}

// PublishReading hands one meter reading to the broker and returns without
// waiting for delivery. Delivery failures are logged.
func (p *Publisher) PublishReading(sessionID string, r meter.Reading) error {
	if p.client == nil {
		return nil
	}

	body, err := json.Marshal(ReadingMessage{Session: sessionID, Reading: r})
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}

	topic := p.Topic()
	token := p.client.Publish(topic, 0, false, body)
	go func() {
		if !token.WaitTimeout(publishWait) {
			p.log.WithField("topic", topic).Warn("MQTT publish not acknowledged")
			return
		}
		if err := token.Error(); err != nil {
			p.log.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
		}
	}()
	return nil
}

// HAPayload matches the Home Assistant backfill service call data
type HAPayload struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// Publish backfills one daily energy record into Home Assistant
func (p *Publisher) Publish(record models.EnergyRecord) error {
	if !p.haConfig.Enabled {
		return fmt.Errorf("Home Assistant publishing is not enabled in config")
	}

	apiURL := fmt.Sprintf("%s/api/appdaemon/backfill_state", p.haConfig.URL)
	timestamp := record.Date.Format(time.RFC3339)

	body, err := json.Marshal(HAPayload{
		EntityID:    p.haConfig.EntityID,
		State:       fmt.Sprintf("%.2f", record.KWh),
		LastChanged: timestamp,
		LastUpdated: timestamp,
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// StatsResult is the AppDaemon reply to a statistics compilation
type StatsResult struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	TotalHours int `json:"total_hours"`
}

// GenerateStatistics asks Home Assistant to compile long-term statistics from
// the backfilled states so the Energy dashboard picks them up
func (p *Publisher) GenerateStatistics() (*StatsResult, error) {
	if !p.haConfig.Enabled {
		return nil, fmt.Errorf("Home Assistant publishing is not enabled in config")
	}

	apiURL := fmt.Sprintf("%s/api/appdaemon/generate_statistics", p.haConfig.URL)
	body, err := json.Marshal(map[string]string{"entity_id": p.haConfig.EntityID})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequest("POST", apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.haConfig.Token)
	req.Header.Set("Content-Type", "application/json")

	// statistics generation is slow on large histories
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	var result StatsResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil {
		// also stops a pending connect retry
		p.client.Disconnect(250)
	}
}
