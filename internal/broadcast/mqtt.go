package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes broadcasts to an external MQTT broker at QoS 0.
// Tokens are not awaited: a dropped publish is acceptable because the next
// tick's snapshot supersedes it.
type MQTTPublisher struct {
	client mqtt.Client
	logger *log.Logger
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(brokerURL string, logger *log.Logger) (*MQTTPublisher, error) {
	if brokerURL == "" {
		return nil, errors.New("broadcast: empty broker url")
	}
	if logger == nil {
		logger = log.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("bustrackr-" + time.Now().Format("20060102150405"))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Printf("broadcast: mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("broadcast: mqtt connect: %w", token.Error())
	}
	return &MQTTPublisher{client: client, logger: logger}, nil
}

// Publish sends the payload to the topic and returns without waiting for
// broker acknowledgement.
func (p *MQTTPublisher) Publish(_ context.Context, topic string, payload any) error {
	if p == nil || p.client == nil {
		return errors.New("broadcast: nil mqtt client")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.client.Publish(topic, 0, false, data)
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p != nil && p.client != nil {
		p.client.Disconnect(250)
	}
}
