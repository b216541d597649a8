// Package telemetry publishes charging-control state to MQTT so home
// dashboards can watch the throttle. Entirely optional: nothing runs
// unless a broker is configured.
package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chargectl/chargectl/pkg/events"
)

// Topic is the MQTT topic charging state is published under.
const Topic = "power/chargectl/state"

// Publisher sends charging state to a broker.
type Publisher interface {
	Publish(state State) error
	Close() error
}

// State is the published payload.
type State struct {
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
	Plugged   bool    `json:"plugged"`
	Percent   float64 `json:"percent"`
}

// MQTTPublisher publishes to a real broker.
type MQTTPublisher struct {
	client paho.Client
	topic  string
}

func NewMQTTPublisher(broker string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("chargectl").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, pkgerrors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to mqtt broker")
	}

	return &MQTTPublisher{client: client, topic: Topic}, nil
}

func (p *MQTTPublisher) Publish(state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal telemetry state")
	}

	// QoS 0, retained so dashboards see the latest state on subscribe.
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return pkgerrors.New("mqtt publish timeout")
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// FakePublisher records published states for test assertions. Safe for
// concurrent use; the relay publishes from its own goroutine.
type FakePublisher struct {
	PublishError error

	mu     sync.Mutex
	states []State
	closed bool
}

func (p *FakePublisher) Publish(state State) error {
	if p.PublishError != nil {
		return p.PublishError
	}
	p.mu.Lock()
	p.states = append(p.states, state)
	p.mu.Unlock()
	return nil
}

func (p *FakePublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Recorded returns a copy of the states published so far.
func (p *FakePublisher) Recorded() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]State(nil), p.states...)
}

func (p *FakePublisher) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Relay forwards battery.changed events to a publisher until the
// subscription channel closes.
func Relay(hub *events.Hub, pub Publisher) chan events.Event {
	ch := hub.Subscribe(events.BatteryChanged)
	go func() {
		for ev := range ch {
			payload, err := events.DecodeAs[events.BatteryChangedEvent](ev)
			if err != nil {
				continue
			}
			state := State{
				Timestamp: time.Now().Format(time.RFC3339),
				Status:    payload.Status,
				Plugged:   payload.Plugged,
				Percent:   payload.Percent,
			}
			if err := pub.Publish(state); err != nil {
				logrus.Errorf("failed to publish telemetry: %v", err)
			}
		}
	}()
	return ch
}
