package coordinator

import (
	"context"

	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/mqtt"
)

// Notifier announces completed rounds to participants.
type Notifier interface {
	RoundCompleted(ctx context.Context, event fl.RoundCompleted) error
}

type mqttNotifier struct {
	pubsub mqtt.PubSub
	topic  string
}

// NewMQTTNotifier publishes round completions on topic.
func NewMQTTNotifier(pubsub mqtt.PubSub, topic string) Notifier {
	return &mqttNotifier{pubsub: pubsub, topic: topic}
}

func (n *mqttNotifier) RoundCompleted(ctx context.Context, event fl.RoundCompleted) error {
	return n.pubsub.Publish(ctx, n.topic, event)
}
