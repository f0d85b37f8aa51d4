package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/mqtt"
)

// Command topics, relative to the prefix passed to NewCommands.
const (
	// ConfirmTopic finishes a discovered flow. The payload is a flow id, or a domain to confirm its oldest pending
	// flow.
	ConfirmTopic = "flows/confirm"
	// UserTopic starts the user step for the domain in the payload.
	UserTopic = "flows/user"
	// ResultTopic receives the outcome of every command as json.
	ResultTopic = "flows/result"
)

// CommandResult is the json payload written to ResultTopic.
type CommandResult struct {
	Command string     `json:"command"`
	Target  string     `json:"target"`
	Type    ResultType `json:"type,omitempty"`
	FlowID  string     `json:"flow_id,omitempty"`
	Domain  string     `json:"domain,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	EntryID string     `json:"entry_id,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Commands exposes the confirm and user steps of a Registry over MQTT. It implements mqtt.Handler.
type Commands struct {
	registry *Registry
	entries  EntryCreator
	prefix   string

	result *mqtt.Value[CommandResult]
	ctx    context.Context

	log *slog.Logger
}

var _ mqtt.Handler = &Commands{}

// NewCommands constructs Commands for the topics below prefix.
func NewCommands(registry *Registry, entries EntryCreator, prefix string) *Commands {
	return &Commands{
		registry: registry,
		entries:  entries,
		prefix:   prefix,

		result: mqtt.NewValueWithOptions(ResultTopic, mqtt.JsonValueMarshaler[CommandResult](), mqtt.WriteOptions{QoS: mqtt.QOSAtLeastOnce}),
		ctx:    context.Background(),

		log: log.ForComponent("flow.commands"),
	}
}

// Subscribe routes both command topics to c. Commands run with ctx.
func (c *Commands) Subscribe(ctx context.Context, sub mqtt.Subscriber) error {
	c.ctx = ctx

	opts := mqtt.ReadOptions{QoS: mqtt.QOSAtLeastOnce}
	return sub.Subscribe(ctx, c,
		mqtt.Subscription{Topic: mqtt.JoinTopic(c.prefix, ConfirmTopic), Options: opts},
		mqtt.Subscription{Topic: mqtt.JoinTopic(c.prefix, UserTopic), Options: opts},
	)
}

// ServeMQTT runs the command on a new goroutine and writes its CommandResult through w.
func (c *Commands) ServeMQTT(w mqtt.Writer, topic string, payload []byte) {
	target := strings.TrimSpace(string(payload))

	go func() {
		result := c.Handle(c.ctx, topic, target)
		if err := mqtt.Error(c.result.Write(c.ctx, w, c.prefix, result)); err != nil {
			c.log.With(log.Error(err)).Warn("Failed to publish command result")
		}
	}()
}

// Handle runs the command for topic against target and reports the outcome.
func (c *Commands) Handle(ctx context.Context, topic, target string) CommandResult {
	var (
		command string
		result  Result
		err     error
	)

	switch mqtt.TrimTopic(topic) {
	case mqtt.JoinTopic(c.prefix, ConfirmTopic):
		command = "confirm"
		result, err = c.confirm(ctx, target)
	case mqtt.JoinTopic(c.prefix, UserTopic):
		command = "user"
		result, err = c.registry.User(ctx, c.entries, target)
	default:
		err = fmt.Errorf("unknown command topic %q", topic)
	}

	out := CommandResult{
		Command: command,
		Target:  target,
		Type:    result.Type,
		FlowID:  result.FlowID,
		Domain:  result.Domain,
		Reason:  result.Reason,
	}

	if result.Entry != nil {
		out.EntryID = result.Entry.ID
	}

	l := c.log.With(slog.String("command", command), slog.String("target", target))
	if err != nil {
		out.Error = err.Error()
		l.With(log.Error(err)).Warn("Flow command failed")
	} else {
		l.With(slog.Any("result", result)).Info("Ran flow command")
	}

	return out
}

func (c *Commands) confirm(ctx context.Context, target string) (Result, error) {
	if _, ok := c.registry.Lookup(target); ok {
		pending := c.registry.OldestInProgress(target)
		if pending == "" {
			return Result{}, fmt.Errorf("%s: %w", target, ErrUnknownFlow)
		}

		target = pending
	}

	return c.registry.Confirm(ctx, c.entries, target)
}
