package joblog

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// KafkaWriter is the subset of *kafka.Writer the mirror uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror publishes job log entries keyed by job ID so a job's entries
// stay ordered within one partition.
type KafkaMirror struct {
	writer KafkaWriter
}

// NewKafkaMirror writes to topic on brokers.
func NewKafkaMirror(brokers []string, topic string) *KafkaMirror {
	return NewKafkaMirrorWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

// NewKafkaMirrorWithWriter wraps an existing writer.
func NewKafkaMirrorWithWriter(w KafkaWriter) *KafkaMirror {
	return &KafkaMirror{writer: w}
}

func (m *KafkaMirror) Publish(ctx context.Context, entries []model.JobLogEntry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			return eris.Wrap(err, "joblog: marshal entry")
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.JobID), Value: value, Time: e.Timestamp})
	}
	if err := m.writer.WriteMessages(ctx, msgs...); err != nil {
		return eris.Wrap(err, "joblog: kafka write")
	}
	return nil
}

func (m *KafkaMirror) Close() error {
	return eris.Wrap(m.writer.Close(), "joblog: kafka close")
}
