// Package supervisor exposes what the host-management supervisor reports about the machine hglue runs on. Presence is
// detected from the environment; operating system details arrive asynchronously over MQTT and are absent until the
// first message is received.
package supervisor

import (
	"context"
	"log/slog"
	"os"

	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/mqtt"
)

const (
	// EnvSupervisor is set by the supervisor for every process it manages.
	EnvSupervisor = "SUPERVISOR"

	// DefaultTopicPrefix is where the supervisor bridge publishes its data.
	DefaultTopicPrefix = "supervisor"
	// OSInfoTopic is the topic (relative to the prefix) carrying OSInfo as json.
	OSInfoTopic = "os/info"
)

// OSInfo is the operating system information reported by the supervisor. It implements slog.LogValuer.
type OSInfo struct {
	Board           string `json:"board"`
	Version         string `json:"version,omitempty"`
	VersionLatest   string `json:"version_latest,omitempty"`
	UpdateAvailable bool   `json:"update_available,omitempty"`
	DataDisk        string `json:"data_disk,omitempty"`
}

func (o OSInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("board", o.Board),
		slog.String("version", o.Version),
	)
}

// Detect reports whether this process is managed by the supervisor.
func Detect() bool {
	_, ok := os.LookupEnv(EnvSupervisor)
	return ok
}

// Source combines supervisor presence with the most recent OSInfo received from the supervisor bridge.
type Source struct {
	present bool
	osInfo  *mqtt.RemoteValue[OSInfo]

	log *slog.Logger
}

// NewSource constructs a Source. OSInfo is read from OSInfoTopic below topicPrefix (DefaultTopicPrefix if empty).
func NewSource(present bool, topicPrefix string) *Source {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}

	return &Source{
		present: present,
		osInfo:  mqtt.NewJsonRemoteValue[OSInfo](mqtt.JoinTopic(topicPrefix, OSInfoTopic), mqtt.ReadOptions{QoS: mqtt.QOSAtLeastOnce}),

		log: log.ForComponent("supervisor"),
	}
}

// IsSupervisor reports whether the supervisor manages this process.
func (s *Source) IsSupervisor() bool {
	return s.present
}

// OSInfo returns the most recent OSInfo. The second return value is false until the supervisor bridge has published
// at least once.
func (s *Source) OSInfo() (OSInfo, bool) {
	return s.osInfo.Get()
}

// Watch calls f with every OSInfo received from the supervisor bridge.
func (s *Source) Watch(f func(OSInfo)) int {
	return s.osInfo.Watch(f)
}

// Unwatch removes a callback registered with Watch.
func (s *Source) Unwatch(id int) {
	s.osInfo.Unwatch(id)
}

// Topic returns the fully qualified OSInfo topic.
func (s *Source) Topic() string {
	return s.osInfo.FullyQualifiedTopic("")
}

// ServeMQTT feeds a payload received on Topic into the Source.
func (s *Source) ServeMQTT(w mqtt.Writer, topic string, payload []byte) {
	s.osInfo.ServeMQTT(w, topic, payload)
}

// Subscribe starts receiving OSInfo through the provided mqtt.Subscriber.
func (s *Source) Subscribe(ctx context.Context, sub mqtt.Subscriber) error {
	s.log.With(slog.String("topic", s.Topic())).Debug("Subscribing to supervisor os info")
	return sub.Subscribe(ctx, s, s.osInfo.AppendSubscribeOptions(nil, "")...)
}
