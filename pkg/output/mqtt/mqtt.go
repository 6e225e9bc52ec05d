package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/mypci-voltage/pkg/config"
	"github.com/ericogr/mypci-voltage/pkg/output"
	"github.com/ericogr/mypci-voltage/pkg/sensor"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "mypci-voltage"
	DefaultStateTopic = "mypci/voltage"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	unitVolts              = "V"
	deviceClassVoltage     = "voltage"
	stateClassMeasurement  = "measurement"
	valueTemplateVoltage   = "{{ value_json.voltage }}"

	disconnectQuiesceMs = 250
)

type MQTTOutput struct {
	client     mqtt.Client
	stateTopic string
}

// withDefaults fills the connection fields left empty in cfg.
func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = DefaultStateTopic
	}
	return cfg
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	cfg = withDefaults(cfg)
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "mqtt connect")
	}

	m := &MQTTOutput{client: client, stateTopic: cfg.StateTopic}

	if err := publishDiscovery(client, cfg); err != nil {
		log.Warnf("mqtt discovery publish error: %v", err)
	}

	return m, nil
}

func (m *MQTTOutput) Publish(r sensor.Reading) error {
	return publishJSON(m.client, m.stateTopic, false, statePayload(r))
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	return nil
}

// statePayload carries the scaled value plus the raw sample for debugging.
func statePayload(r sensor.Reading) map[string]interface{} {
	return map[string]interface{}{
		"voltage":   r.Voltage,
		"raw":       r.Raw,
		"device":    r.Device,
		"timestamp": r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// publishDiscovery sends the retained Home Assistant discovery payload when
// cfg names a discovery topic.
func publishDiscovery(client mqtt.Client, cfg config.MQTTConfig) error {
	if cfg.DiscoveryTopic == "" {
		return nil
	}
	payload := baseDiscoveryPayload(discoveryName(cfg), cfg.StateTopic, discoveryUniqueID(cfg))
	return publishJSON(client, cfg.DiscoveryTopic, true, payload)
}

// helper: build a human-friendly discovery name
func discoveryName(cfg config.MQTTConfig) string {
	if cfg.DiscoveryName != "" {
		return cfg.DiscoveryName
	}
	return fmt.Sprintf("mypci %s", cfg.ClientID)
}

// helper: build a unique id for discovery
func discoveryUniqueID(cfg config.MQTTConfig) string {
	if cfg.DiscoveryUniqueID != "" {
		return cfg.DiscoveryUniqueID
	}
	return cfg.ClientID
}

// helper: base discovery payload map
func baseDiscoveryPayload(name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   unitVolts,
		keyDeviceClass:         deviceClassVoltage,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplateVoltage,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client mqtt.Client, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return errors.Wrapf(token.Error(), "mqtt publish %s", topic)
}
