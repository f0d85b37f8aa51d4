package mqtt

import (
	"context"
	"log/slog"
)

// Subscription is a topic filter together with the ReadOptions to subscribe with. It implements fmt.Stringer and
// slog.LogValuer.
type Subscription struct {
	Topic   string
	Options ReadOptions
}

func (s Subscription) String() string {
	return s.Topic
}

func (s Subscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("topic", s.Topic),
		slog.Any("options", s.Options),
	)
}

// Handler receives the messages of a Subscription.
//
// ServeMQTT is called from the client's receive loop and must not block; start a goroutine for anything slow. Neither
// w nor message may be retained after ServeMQTT returns.
type Handler interface {
	ServeMQTT(w Writer, topic string, message []byte)
}

// Subscriber manages the subscriptions of a connection.
type Subscriber interface {
	// Subscribe routes messages for every subscription to handler. Subscriptions survive reconnects.
	Subscribe(ctx context.Context, handler Handler, subscriptions ...Subscription) error

	// Unsubscribe drops the subscriptions for topics.
	Unsubscribe(ctx context.Context, topics ...string) error
}
