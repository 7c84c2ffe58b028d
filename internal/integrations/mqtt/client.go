package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"hoopsight/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// publishTimeout begrenzt das Warten auf die Bestätigung des Brokers
const publishTimeout = 5 * time.Second

// Client ist der MQTT-Client für Ereignisse und Steuerbefehle
type Client struct {
	config   config.MQTTConfig
	client   mqtt.Client
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

// MessageHandler verarbeitet Nachrichten eines abonnierten Topics
type MessageHandler interface {
	HandleMessage(topic string, payload []byte)
}

// HandlerFunc erlaubt einfache Funktionen als MessageHandler
type HandlerFunc func(topic string, payload []byte)

// HandleMessage ruft f auf
func (f HandlerFunc) HandleMessage(topic string, payload []byte) {
	f(topic, payload)
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config:   cfg,
		handlers: make(map[string]MessageHandler),
	}
}

// Topic bildet ein Topic unterhalb des konfigurierten Präfixes
func (c *Client) Topic(suffix string) string {
	return fmt.Sprintf("%s/%s", c.config.TopicPrefix, suffix)
}

// RegisterHandler registriert einen Handler für ein Topic.
// Abonniert wird beim (Wieder-)Verbinden.
func (c *Client) RegisterHandler(topic string, handler MessageHandler) {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()
	log.Debugf("Registered MQTT handler for topic %s", topic)
}

// Start startet den MQTT-Client und verbindet ihn mit dem Broker
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	// Optionale Authentifizierung
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)

	// Automatische Wiederverbindung
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	log.Info("MQTT client connected successfully")
	return nil
}

// Stop beendet den MQTT-Client
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250) // 250ms Wartezeit
		log.Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// onConnectHandler abonniert alle registrierten Topics
func (c *Client) onConnectHandler(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic := range c.handlers {
		if token := client.Subscribe(topic, 1, c.messageHandler); token.Wait() && token.Error() != nil {
			log.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
		} else {
			log.Infof("Subscribed to MQTT topic: %s", topic)
		}
	}
}

// connectionLostHandler wird aufgerufen, wenn die Verbindung verloren geht
func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

// messageHandler leitet eingehende Nachrichten an den Handler des Topics weiter
func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

func (c *Client) dispatch(topic string, payload []byte) {
	log.Debugf("Received MQTT message on topic: %s", topic)

	c.mu.RLock()
	handler, ok := c.handlers[topic]
	c.mu.RUnlock()
	if !ok {
		return
	}
	go handler.HandleMessage(topic, payload)
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	var payloadBytes []byte
	var err error

	switch p := payload.(type) {
	case string:
		payloadBytes = []byte(p)
	case []byte:
		payloadBytes = p
	default:
		payloadBytes, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing message to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain veröffentlicht eine Nachricht mit dem Retain-Flag
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish veröffentlicht eine Nachricht ohne Retain-Flag
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
