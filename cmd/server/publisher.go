package main

import (
	"context"
	"log/slog"

	"doctrack/internal/outbox"
	"doctrack/internal/platform/config"
	"doctrack/internal/platform/kafka"
)

// newPublisher returns the Kafka publisher when brokers are configured and a
// log-only publisher otherwise.
func newPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (outbox.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		log.WarnContext(ctx, "KAFKA_BROKERS not set, routing events are logged only")
		return outbox.LogPublisher{Logger: log}, func() {}, nil
	}
	p, err := kafka.NewPublisher(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := p.EnsureTopic(ctx, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		log.WarnContext(ctx, "could not ensure kafka topic", "topic", cfg.Topic, "error", err)
	}
	return p, p.Close, nil
}
