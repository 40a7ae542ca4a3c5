package services

import (
	"time"

	"learnhub/logger"
	"learnhub/services/kafka"
)

// AuditSink is an append-only log of state-changing actions. Recording is
// fire-and-forget: the pipeline never blocks on or fails because of it.
type AuditSink interface {
	Record(action string, fields map[string]interface{})
}

// KafkaAuditSink publishes audit events to a kafka topic, best-effort.
type KafkaAuditSink struct {
	topic string
}

func NewKafkaAuditSink(topic string) *KafkaAuditSink {
	return &KafkaAuditSink{topic: topic}
}

func (s *KafkaAuditSink) Record(action string, fields map[string]interface{}) {
	evt := map[string]interface{}{
		"action": action,
		"ts":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		evt[k] = v
	}

	go func() {
		if err := kafka.Publish(s.topic, action, evt); err != nil {
			logger.Warn("failed to publish audit event %s: %v", action, err)
		}
	}()
}
