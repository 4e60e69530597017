package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/ericogr/pyrologger/pkg/config"
	"github.com/ericogr/pyrologger/pkg/output"
	"github.com/ericogr/pyrologger/pkg/sensor"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "pyrologger"
	DefaultStateTopic = "pyrologger"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	stateClassMeasurement  = "measurement"
	valueTemplate          = "{{ value_json.value }}"
)

type kindMeta struct {
	unit        string
	deviceClass string
}

var kinds = map[sensor.Kind]kindMeta{
	sensor.KindHumidity:    {unit: "%", deviceClass: "humidity"},
	sensor.KindTemperature: {unit: "°C", deviceClass: "temperature"},
	sensor.KindIrradiance:  {unit: "W/m²", deviceClass: "irradiance"},
}

// publisher is the part of mqtt.Client the output uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTOutput struct {
	client         publisher
	cfg            config.MQTTConfig
	stateTopic     string
	discoveryTopic string
	log            logrus.FieldLogger

	mu         sync.Mutex
	discovered map[string]bool
}

// NewMQTT connects to cfg.Server. When cfg.DiscoveryTopic is set a Home
// Assistant discovery payload is published once per kind and source; the
// topic may contain %s, which is replaced by "<kind>_<source>".
func NewMQTT(cfg config.MQTTConfig, log logrus.FieldLogger) (output.Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
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
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newOutput(client, cfg, log), nil
}

func newOutput(client publisher, cfg config.MQTTConfig, log logrus.FieldLogger) *MQTTOutput {
	st := cfg.StateTopic
	if st == "" {
		st = DefaultStateTopic
	}
	return &MQTTOutput{
		client:         client,
		cfg:            cfg,
		stateTopic:     strings.TrimSuffix(st, "/"),
		discoveryTopic: cfg.DiscoveryTopic,
		log:            log,
		discovered:     map[string]bool{},
	}
}

func (m *MQTTOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		topic := m.topic(r)
		m.discover(r, topic)

		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		token := m.client.Publish(topic, 0, false, b)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// topic is <state topic>/<kind>/<source>.
func (m *MQTTOutput) topic(r sensor.Reading) string {
	return fmt.Sprintf("%s/%s/%s", m.stateTopic, r.Kind, topicSegment(r.Source))
}

func (m *MQTTOutput) discover(r sensor.Reading, stateTopic string) {
	if m.discoveryTopic == "" {
		return
	}
	id := fmt.Sprintf("%s_%s", r.Kind, topicSegment(r.Source))
	m.mu.Lock()
	done := m.discovered[id]
	m.discovered[id] = true
	m.mu.Unlock()
	if done {
		return
	}

	dTopic := m.discoveryTopic
	if strings.Contains(dTopic, "%s") {
		dTopic = fmt.Sprintf(dTopic, id)
	}
	payload := discoveryPayload(discoveryName(m.cfg, id), stateTopic, discoveryUniqueID(m.cfg, id), kinds[r.Kind])
	if err := publishJSON(m.client, dTopic, true, payload); err != nil {
		m.log.WithError(err).Warn("mqtt discovery publish error")
	}
}

// topicSegment makes a device path usable as one topic level.
func topicSegment(s string) string {
	s = strings.Trim(s, "/")
	return strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_").Replace(s)
}

func discoveryName(cfg config.MQTTConfig, id string) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = cfg.ClientID
	}
	return fmt.Sprintf("%s %s", name, id)
}

func discoveryUniqueID(cfg config.MQTTConfig, id string) string {
	return fmt.Sprintf("%s_%s", cfg.ClientID, id)
}

func discoveryPayload(name, stateTopic, uniqueID string, meta kindMeta) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplate,
		keyJSONAttributesTopic: stateTopic,
		keyUniqueID:            uniqueID,
	}
	if meta.unit != "" {
		payload[keyUnitOfMeasurement] = meta.unit
		payload[keyDeviceClass] = meta.deviceClass
	}
	return payload
}

func publishJSON(client publisher, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
