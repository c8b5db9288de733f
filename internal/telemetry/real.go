package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const availabilitySuffix = "/availability"

// PahoSink publishes to an MQTT broker. The broker marks the controller
// offline through a retained last-will message if the connection drops.
type PahoSink struct {
	client paho.Client
	will   string
}

type PahoOptions struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

func NewPahoSink(o PahoOptions) (*PahoSink, error) {
	will := o.Topic + availabilitySuffix
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetWill(will, "offline", 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	s := &PahoSink{client: client, will: will}
	if err := s.PublishRetained(will, []byte("online")); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PahoSink) PublishRetained(topic string, payload []byte) error {
	// QoS 1 so the retained state survives a broker restart
	token := s.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close marks the controller offline and disconnects.
func (s *PahoSink) Close() error {
	err := s.PublishRetained(s.will, []byte("offline"))
	s.client.Disconnect(1000)
	return err
}
