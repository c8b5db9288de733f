// Package telemetry publishes controller snapshots to an MQTT broker as
// retained JSON so dashboards always see the latest state on subscribe.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

// Sink sends retained messages to a broker.
type Sink interface {
	PublishRetained(topic string, payload []byte) error
	Close() error
}

// Publisher observes snapshots on the control loop and hands the newest one
// to Run. Observe never blocks.
type Publisher struct {
	sink     Sink
	topic    string
	interval time.Duration
	last     time.Time
	latest   chan model.Snapshot
}

func NewPublisher(sink Sink, topic string, interval time.Duration) *Publisher {
	return &Publisher{
		sink:     sink,
		topic:    topic,
		interval: interval,
		latest:   make(chan model.Snapshot, 1),
	}
}

func (p *Publisher) Observe(snap model.Snapshot) {
	if !p.last.IsZero() && snap.Timestamp.Sub(p.last) < p.interval {
		return
	}
	p.last = snap.Timestamp

	// replace an unsent snapshot with the newer one
	select {
	case <-p.latest:
	default:
	}
	select {
	case p.latest <- snap:
	default:
	}
}

// Run publishes snapshots until ctx is cancelled, then closes the sink.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close telemetry sink")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.latest:
			if err := p.publish(snap); err != nil {
				log.Warn().Err(err).Str("topic", p.topic).Msg("Telemetry publish failed")
			}
		}
	}
}

func (p *Publisher) publish(snap model.Snapshot) error {
	payload, err := FormatPayload(snap)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.sink.PublishRetained(p.topic, payload); err != nil {
		return err
	}
	log.Debug().Str("topic", p.topic).Int("bytes", len(payload)).Msg("Published telemetry snapshot")
	return nil
}

// FormatPayload renders a snapshot without the trend histories, which are
// only useful to the local display.
func FormatPayload(snap model.Snapshot) ([]byte, error) {
	for i := range snap.Zones {
		snap.Zones[i].History = nil
	}
	snap.Pump.History = nil
	snap.LastScan = nil
	return json.Marshal(snap)
}
