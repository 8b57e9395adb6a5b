package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	// WarningProfileConflict: the insert fallback hit a username or email owned by another profile.
	WarningProfileConflict = "profile_conflict"
	// WarningStoreError: the profile store failed for any other reason.
	WarningStoreError = "store_error"
	// WarningPrecreateFailed: signup created the provider account but not the profile row.
	WarningPrecreateFailed = "profile_precreate_failed"
)

// Warning describes profile bookkeeping that did not complete. The account
// itself is fine; the profile row needs attention.
type Warning struct {
	Kind     string    `json:"kind"`
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username,omitempty"`
	Detail   string    `json:"detail"`
	At       time.Time `json:"at"`
}

// WarningSink receives reconcile warnings.
type WarningSink interface {
	Report(ctx context.Context, w Warning) error
}

// LogSink logs warnings with the default logger.
type LogSink struct{}

func (LogSink) Report(ctx context.Context, w Warning) error {
	slog.WarnContext(ctx, "Profile reconcile warning",
		"kind", w.Kind, "user_id", w.UserID, "email", w.Email, "username", w.Username, "detail", w.Detail)
	return nil
}

// MessageWriter is the part of kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes warnings so an out-of-band job can repair profiles.
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter returns a synchronous writer for the given brokers.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

func (s *KafkaSink) Report(ctx context.Context, w Warning) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal warning: %w", err)
	}
	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(w.UserID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("profile.reconcile.warning")},
			{Key: "kind", Value: []byte(w.Kind)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish warning to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// MultiSink reports to every sink and returns the first error.
type MultiSink []WarningSink

func (m MultiSink) Report(ctx context.Context, w Warning) error {
	var first error
	for _, s := range m {
		if err := s.Report(ctx, w); err != nil && first == nil {
			first = err
		}
	}
	return first
}
