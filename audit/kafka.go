package audit

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kochabx/rentoso/store/kafka"
)

// DefaultTopic 审计主题
const DefaultTopic = "rentoso.session.audit"

// KafkaSink 以用户 id 为消息键写入 Kafka，同一用户的事件保序
type KafkaSink struct {
	writer kafka.Writer
}

// NewKafkaSink topic 为空时使用 DefaultTopic
func NewKafkaSink(client *kafka.Client, topic string) (*KafkaSink, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	w, err := client.Producer(topic)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{writer: w}, nil
}

// NewKafkaSinkWriter 直接使用给定的 Writer
func NewKafkaSinkWriter(w kafka.Writer) *KafkaSink {
	return &KafkaSink{writer: w}
}

func (s *KafkaSink) Record(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(e.UserID),
		Value: value,
		Time:  e.At,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(e.Type)},
		},
	})
}
