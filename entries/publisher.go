package entries

import (
	"context"
	"errors"
	"sync"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/mqtt"
)

// EntryStateMarshaler writes an hglue.EntryState as its plain string value.
var EntryStateMarshaler = mqtt.TextMarshaler[hglue.EntryState]()

// StatePublisher writes the state of every entry to a retained topic below a prefix:
//
//	<prefix>/entries/<entry id>/state
type StatePublisher struct {
	w      mqtt.Writer
	prefix string
	opts   mqtt.WriteOptions

	mu     sync.Mutex
	values map[string]*mqtt.Value[hglue.EntryState]
}

// NewStatePublisher constructs a StatePublisher writing retained messages with QoS 1 through w.
func NewStatePublisher(w mqtt.Writer, prefix string) *StatePublisher {
	return &StatePublisher{
		w:      w,
		prefix: prefix,
		opts:   mqtt.WriteOptions{QoS: mqtt.QOSAtLeastOnce, Retain: true},
		values: map[string]*mqtt.Value[hglue.EntryState]{},
	}
}

// StateTopic returns the topic (relative to the publisher's prefix) the state of the specified entry is written to.
func StateTopic(id string) string {
	return mqtt.JoinTopic("entries", id, "state")
}

func (p *StatePublisher) value(id string) *mqtt.Value[hglue.EntryState] {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.values[id]
	if !ok {
		v = mqtt.NewValueWithOptions(StateTopic(id), EntryStateMarshaler, p.opts)
		p.values[id] = v
	}

	return v
}

// Publish writes state for the specified entry.
func (p *StatePublisher) Publish(ctx context.Context, id string, state hglue.EntryState) error {
	return mqtt.Error(p.value(id).Write(ctx, p.w, p.prefix, state))
}

// Forget stops tracking the specified entry. Its last retained state stays on the broker.
func (p *StatePublisher) Forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.values, id)
}

// RepublishAll writes the last state of every tracked entry again, e.g. after the broker connection was restored.
func (p *StatePublisher) RepublishAll(ctx context.Context) error {
	p.mu.Lock()
	values := make([]*mqtt.Value[hglue.EntryState], 0, len(p.values))
	for _, v := range p.values {
		values = append(values, v)
	}
	p.mu.Unlock()

	var errs []error
	for _, v := range values {
		if _, err := v.Republish(ctx, p.w, p.prefix); err != nil && !errors.Is(err, mqtt.ErrNeverWritten) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
