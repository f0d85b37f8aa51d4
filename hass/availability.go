package hass

import (
	"github.com/nlowe/hglue/mqtt"
)

// Availability is the online state of a process as published on its status topic.
type Availability string

var (
	AvailabilityMarshaler   = mqtt.TextMarshaler[Availability]()
	AvailabilityUnmarshaler = mqtt.TextUnmarshaler[Availability]()
)

const (
	// Available is published once connected.
	Available Availability = "online"
	// Unavailable is published on shutdown and registered as the broker will.
	Unavailable Availability = "offline"

	// StatusTopic is the status topic relative to a process's topic prefix.
	StatusTopic = "status"
)

// NewStatus returns the retained QoS 1 Value for StatusTopic.
func NewStatus() *mqtt.Value[Availability] {
	return mqtt.NewValueWithOptions(StatusTopic, AvailabilityMarshaler, mqtt.WriteOptions{QoS: mqtt.QOSAtLeastOnce, Retain: true})
}
