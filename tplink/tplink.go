// Package tplink holds the constants shared by the TP-Link smart home integration.
package tplink

import (
	"fmt"
	"strings"
	"time"

	"github.com/nlowe/hglue/hass"
)

const Domain = "tplink"

const (
	// DiscoveryTimeout bounds a discovery broadcast. Startup is expected to finish well within twice this.
	DiscoveryTimeout = 5 * time.Second
	ConnectTimeout   = 5 * time.Second
)

// PrimaryStateID identifies the primary control state of a device.
const PrimaryStateID = "state"

const (
	AttrCurrentA       = "current_a"
	AttrCurrentPowerW  = "current_power_w"
	AttrTodayEnergyKWh = "today_energy_kwh"
	AttrTotalEnergyKWh = "total_energy_kwh"
)

const (
	ConfDeviceConfig    = "device_config"
	ConfCredentialsHash = "credentials_hash"
	ConfConnectionType  = "connection_type"
)

// Platforms lists the platforms set up for every TP-Link entry.
var Platforms = []hass.Platform{
	hass.PlatformBinarySensor,
	hass.PlatformButton,
	hass.PlatformClimate,
	hass.PlatformFan,
	hass.PlatformLight,
	hass.PlatformNumber,
	hass.PlatformSelect,
	hass.PlatformSensor,
	hass.PlatformSwitch,
}

// UnitMapping maps the temperature unit names devices report to hass units.
var UnitMapping = map[string]hass.UnitOfTemperature{
	"celsius":    hass.UnitCelsius,
	"fahrenheit": hass.UnitFahrenheit,
}

// ParseTemperatureUnit looks up a device reported unit name in UnitMapping, ignoring case.
func ParseTemperatureUnit(name string) (hass.UnitOfTemperature, error) {
	if u, ok := UnitMapping[strings.ToLower(strings.TrimSpace(name))]; ok {
		return u, nil
	}

	return "", fmt.Errorf("unknown temperature unit %q", name)
}
