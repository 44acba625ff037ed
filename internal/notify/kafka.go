package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "joinflow/pkg/domain-errors"
	"joinflow/pkg/requestcontext"
)

// KafkaNotifier publishes messages to a topic read by the mail renderer.
// Records are keyed by recipient email so one person's messages keep their
// order within a partition.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
}

func NewKafkaNotifier(client *kgo.Client, topic string) *KafkaNotifier {
	return &KafkaNotifier{client: client, topic: topic}
}

func (n *KafkaNotifier) Send(ctx context.Context, msg Message) (*DeliveryResult, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode notification")
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(msg.Recipient.Email),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "template", Value: []byte(msg.Template)},
		},
	}
	produced, err := n.client.ProduceSync(ctx, record).First()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "failed to publish notification")
	}
	return &DeliveryResult{
		MessageID:   fmt.Sprintf("%s/%d/%d", produced.Topic, produced.Partition, produced.Offset),
		Transport:   "kafka",
		DeliveredAt: requestcontext.Now(ctx),
	}, nil
}
