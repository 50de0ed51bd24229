package brokers

import (
	"context"
	"encoding/json"
	"time"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
)

// Message headers set on every encoded hit.
const (
	HeaderContentType = "content-type"
	HeaderOwnerID     = "owner_id"
	HeaderRouteID     = "route_id"
)

// EncodeHit wraps hit in a message keyed by route so that one route's hits
// stay ordered on partitioned brokers.
func EncodeHit(topic string, hit models.Hit) (*Message, error) {
	body, err := json.Marshal(hit)
	if err != nil {
		return nil, errors.InternalError("failed to encode hit", err)
	}
	ts := hit.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Message{
		Topic: topic,
		Key:   hit.RouteID,
		Headers: map[string]string{
			HeaderContentType: "application/json",
			HeaderOwnerID:     hit.OwnerID,
			HeaderRouteID:     hit.RouteID,
		},
		Body:      body,
		Timestamp: ts,
		MessageID: hit.ID,
	}, nil
}

// PublisherSink encodes hits and hands them to a Publisher.
type PublisherSink struct {
	publisher Publisher
	topic     string
	logger    logging.Logger
}

func NewPublisherSink(publisher Publisher, topic string, logger logging.Logger) *PublisherSink {
	if logger == nil {
		logger = logging.Component("brokers")
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}
}

func (s *PublisherSink) Name() string { return s.publisher.Name() }

// Process publishes the batch. Hits that cannot be encoded are logged and skipped.
func (s *PublisherSink) Process(ctx context.Context, batch []models.Hit) error {
	messages := make([]*Message, 0, len(batch))
	for _, hit := range batch {
		msg, err := EncodeHit(s.topic, hit)
		if err != nil {
			s.logger.Error("Dropping unencodable hit", err, logging.String("hit_id", hit.ID))
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) == 0 {
		return nil
	}
	return s.publisher.Publish(ctx, messages)
}

func (s *PublisherSink) Health(ctx context.Context) error { return s.publisher.Health(ctx) }

func (s *PublisherSink) Close() error { return s.publisher.Close() }

// LogSink writes hits to the structured log. It is the default sink.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Component("hits")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Process(_ context.Context, batch []models.Hit) error {
	for _, hit := range batch {
		s.logger.Info("Hit",
			logging.String("hit_id", hit.ID),
			logging.String("route_id", hit.RouteID),
			logging.String("owner_id", hit.OwnerID),
			logging.String("destination", hit.Destination),
			logging.String("country", hit.Country),
			logging.String("device", hit.DeviceFamily),
			logging.Int("session_clicks", hit.SessionClicks),
			logging.Bool("unique", hit.IsUnique),
			logging.Bool("bot", hit.IsBot),
		)
	}
	return nil
}

func (s *LogSink) Health(context.Context) error { return nil }

func (s *LogSink) Close() error { return nil }
