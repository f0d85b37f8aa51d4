package hass

import "log/slog"

// Platform is the name of an entity platform (the UI category an entity is rendered as). It implements fmt.Stringer
// and slog.LogValuer.
type Platform string

const (
	PlatformBinarySensor  Platform = "binary_sensor"
	PlatformButton        Platform = "button"
	PlatformClimate       Platform = "climate"
	PlatformCover         Platform = "cover"
	PlatformDeviceTracker Platform = "device_tracker"
	PlatformFan           Platform = "fan"
	PlatformLight         Platform = "light"
	PlatformNumber        Platform = "number"
	PlatformRemote        Platform = "remote"
	PlatformSelect        Platform = "select"
	PlatformSensor        Platform = "sensor"
	PlatformSwitch        Platform = "switch"
	PlatformText          Platform = "text"
)

func (p Platform) String() string {
	return string(p)
}

func (p Platform) LogValue() slog.Value {
	return slog.StringValue(string(p))
}
