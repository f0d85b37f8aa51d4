package mysensors

import "github.com/nlowe/hglue/hass"

// Per-platform tables of the sensor types a platform creates entities for and the value types it handles. A sensor
// type may appear in several tables: door, motion and similar sensors report V_TRIPPED as a binary sensor and accept
// V_ARMED as a switch.
var (
	BinarySensorTypes = TypeTable{
		"S_DOOR":       NewValueTypeSet("V_TRIPPED"),
		"S_MOTION":     NewValueTypeSet("V_TRIPPED"),
		"S_SMOKE":      NewValueTypeSet("V_TRIPPED"),
		"S_SPRINKLER":  NewValueTypeSet("V_TRIPPED"),
		"S_WATER_LEAK": NewValueTypeSet("V_TRIPPED"),
		"S_SOUND":      NewValueTypeSet("V_TRIPPED"),
		"S_VIBRATION":  NewValueTypeSet("V_TRIPPED"),
		"S_MOISTURE":   NewValueTypeSet("V_TRIPPED"),
	}

	ClimateTypes = TypeTable{
		"S_HVAC": NewValueTypeSet("V_HVAC_FLOW_STATE"),
	}

	CoverTypes = TypeTable{
		"S_COVER": NewValueTypeSet("V_DIMMER", "V_PERCENTAGE", "V_LIGHT", "V_STATUS"),
	}

	DeviceTrackerTypes = TypeTable{
		"S_GPS": NewValueTypeSet("V_POSITION"),
	}

	LightTypes = TypeTable{
		"S_DIMMER":     NewValueTypeSet("V_DIMMER", "V_PERCENTAGE"),
		"S_RGB_LIGHT":  NewValueTypeSet("V_RGB"),
		"S_RGBW_LIGHT": NewValueTypeSet("V_RGBW"),
	}

	RemoteTypes = TypeTable{
		"S_IR": NewValueTypeSet("V_IR_SEND"),
	}

	SensorTypes = TypeTable{
		"S_SOUND":            NewValueTypeSet("V_LEVEL"),
		"S_VIBRATION":        NewValueTypeSet("V_LEVEL"),
		"S_MOISTURE":         NewValueTypeSet("V_LEVEL"),
		"S_INFO":             NewValueTypeSet("V_TEXT"),
		"S_GPS":              NewValueTypeSet("V_POSITION"),
		"S_TEMP":             NewValueTypeSet("V_TEMP"),
		"S_HUM":              NewValueTypeSet("V_HUM"),
		"S_BARO":             NewValueTypeSet("V_PRESSURE", "V_FORECAST"),
		"S_WIND":             NewValueTypeSet("V_WIND", "V_GUST", "V_DIRECTION"),
		"S_RAIN":             NewValueTypeSet("V_RAIN", "V_RAINRATE"),
		"S_UV":               NewValueTypeSet("V_UV"),
		"S_WEIGHT":           NewValueTypeSet("V_WEIGHT", "V_IMPEDANCE"),
		"S_POWER":            NewValueTypeSet("V_WATT", "V_KWH", "V_VAR", "V_VA", "V_POWER_FACTOR"),
		"S_DISTANCE":         NewValueTypeSet("V_DISTANCE"),
		"S_LIGHT_LEVEL":      NewValueTypeSet("V_LIGHT_LEVEL", "V_LEVEL"),
		"S_IR":               NewValueTypeSet("V_IR_RECEIVE", "V_IR_RECORD"),
		"S_WATER":            NewValueTypeSet("V_FLOW", "V_VOLUME"),
		"S_CUSTOM":           NewValueTypeSet("V_VAR1", "V_VAR2", "V_VAR3", "V_VAR4", "V_VAR5", "V_CUSTOM"),
		"S_SCENE_CONTROLLER": NewValueTypeSet("V_SCENE_ON", "V_SCENE_OFF"),
		"S_COLOR_SENSOR":     NewValueTypeSet("V_RGB"),
		"S_MULTIMETER":       NewValueTypeSet("V_VOLTAGE", "V_CURRENT", "V_IMPEDANCE"),
		"S_GAS":              NewValueTypeSet("V_FLOW", "V_VOLUME"),
		"S_WATER_QUALITY":    NewValueTypeSet("V_TEMP", "V_PH", "V_ORP", "V_EC"),
		"S_AIR_QUALITY":      NewValueTypeSet("V_DUST_LEVEL", "V_LEVEL"),
		"S_DUST":             NewValueTypeSet("V_DUST_LEVEL", "V_LEVEL"),
	}

	SwitchTypes = TypeTable{
		"S_LIGHT":         NewValueTypeSet("V_LIGHT"),
		"S_BINARY":        NewValueTypeSet("V_STATUS"),
		"S_DOOR":          NewValueTypeSet("V_ARMED"),
		"S_MOTION":        NewValueTypeSet("V_ARMED"),
		"S_SMOKE":         NewValueTypeSet("V_ARMED"),
		"S_SPRINKLER":     NewValueTypeSet("V_STATUS"),
		"S_WATER_LEAK":    NewValueTypeSet("V_ARMED"),
		"S_SOUND":         NewValueTypeSet("V_ARMED"),
		"S_VIBRATION":     NewValueTypeSet("V_ARMED"),
		"S_MOISTURE":      NewValueTypeSet("V_ARMED"),
		"S_LOCK":          NewValueTypeSet("V_LOCK_STATUS"),
		"S_WATER_QUALITY": NewValueTypeSet("V_STATUS"),
	}

	TextTypes = TypeTable{
		"S_INFO": NewValueTypeSet("V_TEXT"),
	}
)

// PlatformTypes lists every platform table. The order is significant: TypeToPlatforms lists platforms in this order.
var PlatformTypes = []PlatformTable{
	{Platform: hass.PlatformBinarySensor, Types: BinarySensorTypes},
	{Platform: hass.PlatformClimate, Types: ClimateTypes},
	{Platform: hass.PlatformCover, Types: CoverTypes},
	{Platform: hass.PlatformDeviceTracker, Types: DeviceTrackerTypes},
	{Platform: hass.PlatformLight, Types: LightTypes},
	{Platform: hass.PlatformRemote, Types: RemoteTypes},
	{Platform: hass.PlatformSensor, Types: SensorTypes},
	{Platform: hass.PlatformSwitch, Types: SwitchTypes},
	{Platform: hass.PlatformText, Types: TextTypes},
}

var (
	// FlatPlatformTypes holds the value types of every (platform, sensor type) pair of PlatformTypes.
	FlatPlatformTypes = MustFlatten(PlatformTypes)

	// TypeToPlatforms lists, for every sensor type, the platforms creating entities for it in PlatformTypes order.
	TypeToPlatforms = InvertPlatforms(PlatformTypes)

	// Platforms lists the platforms of PlatformTypes in order.
	Platforms = platformsOf(PlatformTypes)
)
