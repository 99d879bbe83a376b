package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"zonewatch/internal/config"
)

const feedStreamMaxAge = 24 * time.Hour

// NATSProducer publishes change events into one JetStream stream.
// Params: NATS connection and subject routing prefix.
// Returns: feed producer implementation.
type NATSProducer struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
}

var _ Producer = (*NATSProducer)(nil)

// NewNATSProducer connects to NATS and ensures the feed stream exists.
// Params: feed config with URL list and runtime-fixed stream names.
// Returns: initialized producer or setup error.
func NewNATSProducer(cfg config.FeedConfig) (*NATSProducer, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect feed nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for feed: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.SubjectPrefix+".>"); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSProducer{nc: nc, js: js, subjectPrefix: cfg.SubjectPrefix}, nil
}

// Publish publishes one change event under its type-specific subject.
// Params: context and event payload.
// Returns: publish error.
func (p *NATSProducer) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal feed event: %w", err)
	}
	msg := nats.NewMsg(p.subjectPrefix + "." + string(event.Type))
	msg.Data = body
	if strings.TrimSpace(event.ID) != "" {
		msg.Header.Set("Nats-Msg-Id", strings.TrimSpace(event.ID))
	}
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Close closes producer NATS connection.
// Params: none.
// Returns: nil after connection close.
func (p *NATSProducer) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}

// ensureStream ensures the feed stream exists with interest retention.
// Params: JetStream context, stream name, and subject wildcard.
// Returns: stream create/lookup error.
func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if err != nil && err != nats.ErrStreamNotFound && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    feedStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
