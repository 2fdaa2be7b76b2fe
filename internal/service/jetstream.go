// NATS JetStream event persistence

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"opengate/api/internal/model"
)

// JetStreamService persists gate events and incident notifications so the
// console can replay what happened while it was closed.
type JetStreamService struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// Stream configuration
const (
	StreamGateEvents = "GATE_EVENTS"
	StreamIncidents  = "GATE_INCIDENTS"

	SubjectGateEvents = "gate.events"
	SubjectIncidents  = "gate.incidents"
)

// NewJetStreamService creates the JetStream context and ensures streams.
func NewJetStreamService(nc *nats.Conn) (*JetStreamService, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	s := &JetStreamService{
		nc: nc,
		js: js,
	}

	if err := s.initStreams(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *JetStreamService) initStreams() error {
	streams := []nats.StreamConfig{
		{
			Name:      StreamGateEvents,
			Subjects:  []string{SubjectGateEvents + ".*"},
			Retention: nats.LimitsPolicy,
			MaxMsgs:   -1,
			MaxBytes:  2 * 1024 * 1024 * 1024, // 2GB
			MaxAge:    30 * 24 * time.Hour,    // 30 days
			Storage:   nats.FileStorage,
			Replicas:  1,
		},
		{
			Name:      StreamIncidents,
			Subjects:  []string{SubjectIncidents + ".*"},
			Retention: nats.LimitsPolicy,
			MaxMsgs:   -1,
			MaxBytes:  1024 * 1024 * 1024,  // 1GB
			MaxAge:    90 * 24 * time.Hour, // 90 days
			Storage:   nats.FileStorage,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		_, err := s.js.AddStream(&cfg)
		if err != nil {
			if err == nats.ErrStreamNameAlreadyInUse {
				_, err = s.js.UpdateStream(&cfg)
				if err != nil {
					return fmt.Errorf("failed to update stream %s: %w", cfg.Name, err)
				}
			} else {
				return fmt.Errorf("failed to create stream %s: %w", cfg.Name, err)
			}
		}
	}

	return nil
}

// PublishGateEvent publishes a check-in/check-out event, persisted.
func (s *JetStreamService) PublishGateEvent(ev model.GateEvent) error {
	subject := fmt.Sprintf("%s.%s", SubjectGateEvents, ev.Type)
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = s.js.Publish(subject, payload)
	return err
}

// PublishIncident publishes an incident notification, persisted.
func (s *JetStreamService) PublishIncident(msg model.IncidentMessage) error {
	subject := fmt.Sprintf("%s.%s", SubjectIncidents, msg.Status)
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = s.js.Publish(subject, payload)
	return err
}

// ReplayGateEvents reads back persisted gate events in a time range.
// Returns the batch, whether more remain, and an error.
func (s *JetStreamService) ReplayGateEvents(ctx context.Context, start, end time.Time, batchSize int) ([]model.GateEvent, bool, error) {
	sub, err := s.js.SubscribeSync(SubjectGateEvents+".*",
		nats.OrderedConsumer(),
		nats.StartTime(start),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create replay consumer: %w", err)
	}
	defer sub.Unsubscribe()

	events := make([]model.GateEvent, 0, batchSize)
	for len(events) < batchSize {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				return events, false, nil
			}
			return events, false, err
		}

		meta, err := msg.Metadata()
		if err != nil {
			continue
		}
		if meta.Timestamp.After(end) {
			return events, false, nil
		}

		var ev model.GateEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	return events, true, nil
}

// GetStreamInfo returns stream state for health reporting.
func (s *JetStreamService) GetStreamInfo(name string) (*nats.StreamInfo, error) {
	return s.js.StreamInfo(name)
}

// IsEnabled reports whether JetStream is usable.
func (s *JetStreamService) IsEnabled() bool {
	return s != nil && s.js != nil
}

// Close is a no-op placeholder for symmetric shutdown; the NATS connection
// is owned by main.
func (s *JetStreamService) Close() {}
