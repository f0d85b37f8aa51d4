package mysensors

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hglue/hass"
)

func TestFlatten(t *testing.T) {
	t.Run("Declared Tables", func(t *testing.T) {
		got, err := Flatten(PlatformTypes)
		require.NoError(t, err)

		want := 0
		for _, table := range PlatformTypes {
			want += len(table.Types)
		}

		require.Len(t, got, want)
		require.Equal(t, FlatPlatformTypes, got)
	})

	t.Run("Same Sensor Type On Two Platforms", func(t *testing.T) {
		got, err := Flatten([]PlatformTable{
			{Platform: hass.PlatformBinarySensor, Types: TypeTable{"S_DOOR": NewValueTypeSet("V_TRIPPED")}},
			{Platform: hass.PlatformSwitch, Types: TypeTable{"S_DOOR": NewValueTypeSet("V_ARMED")}},
		})
		require.NoError(t, err)

		assert.Equal(t, NewValueTypeSet("V_TRIPPED"), got[PlatformSensorKey{hass.PlatformBinarySensor, "S_DOOR"}])
		assert.Equal(t, NewValueTypeSet("V_ARMED"), got[PlatformSensorKey{hass.PlatformSwitch, "S_DOOR"}])
	})

	t.Run("Duplicate Pair", func(t *testing.T) {
		tables := []PlatformTable{
			{Platform: hass.PlatformSensor, Types: TypeTable{"S_TEMP": NewValueTypeSet("V_TEMP")}},
			{Platform: hass.PlatformSensor, Types: TypeTable{"S_TEMP": NewValueTypeSet("V_HUM")}},
		}

		_, err := Flatten(tables)
		require.ErrorIs(t, err, ErrDuplicatePlatformType)
		require.ErrorContains(t, err, "sensor/S_TEMP")

		require.Panics(t, func() {
			MustFlatten(tables)
		})
	})
}

func TestInvertPlatforms(t *testing.T) {
	t.Run("Single Platform", func(t *testing.T) {
		require.Equal(t, []hass.Platform{hass.PlatformClimate}, TypeToPlatforms["S_HVAC"])
		require.Equal(t, []hass.Platform{hass.PlatformSensor}, TypeToPlatforms["S_TEMP"])
		require.Equal(t, []hass.Platform{hass.PlatformLight}, TypeToPlatforms["S_DIMMER"])
	})

	t.Run("Declared Overlaps", func(t *testing.T) {
		for _, tt := range []struct {
			sType SensorType
			want  []hass.Platform
		}{
			{sType: "S_DOOR", want: []hass.Platform{hass.PlatformBinarySensor, hass.PlatformSwitch}},
			{sType: "S_SOUND", want: []hass.Platform{hass.PlatformBinarySensor, hass.PlatformSensor, hass.PlatformSwitch}},
			{sType: "S_GPS", want: []hass.Platform{hass.PlatformDeviceTracker, hass.PlatformSensor}},
			{sType: "S_IR", want: []hass.Platform{hass.PlatformRemote, hass.PlatformSensor}},
			{sType: "S_INFO", want: []hass.Platform{hass.PlatformSensor, hass.PlatformText}},
			{sType: "S_WATER_QUALITY", want: []hass.Platform{hass.PlatformSensor, hass.PlatformSwitch}},
		} {
			t.Run(string(tt.sType), func(t *testing.T) {
				require.Equal(t, tt.want, TypeToPlatforms[tt.sType])
			})
		}
	})

	t.Run("Fixture Order", func(t *testing.T) {
		tables := []PlatformTable{
			{Platform: hass.PlatformSwitch, Types: TypeTable{"S_X": NewValueTypeSet("V_ARMED"), "S_ONLY": NewValueTypeSet("V_STATUS")}},
			{Platform: hass.PlatformBinarySensor, Types: TypeTable{"S_X": NewValueTypeSet("V_TRIPPED")}},
		}

		got := InvertPlatforms(tables)
		require.Equal(t, []hass.Platform{hass.PlatformSwitch, hass.PlatformBinarySensor}, got["S_X"])
		require.Equal(t, []hass.Platform{hass.PlatformSwitch}, got["S_ONLY"])
		require.NotContains(t, got, SensorType("S_MISSING"))
	})

	t.Run("Every Flat Key Is Indexed", func(t *testing.T) {
		for k := range FlatPlatformTypes {
			require.Contains(t, TypeToPlatforms[k.SensorType], k.Platform, k.String())
		}
	})
}

func TestPlatforms(t *testing.T) {
	require.Equal(t, []hass.Platform{
		hass.PlatformBinarySensor,
		hass.PlatformClimate,
		hass.PlatformCover,
		hass.PlatformDeviceTracker,
		hass.PlatformLight,
		hass.PlatformRemote,
		hass.PlatformSensor,
		hass.PlatformSwitch,
		hass.PlatformText,
	}, Platforms)
}

func TestLookups(t *testing.T) {
	got := PlatformsFor("S_DOOR")
	got[0] = hass.PlatformFan
	require.Equal(t, hass.PlatformBinarySensor, TypeToPlatforms["S_DOOR"][0], "PlatformsFor must return a copy")

	require.Nil(t, PlatformsFor("S_UNKNOWN"))

	v, ok := ValueTypesFor(hass.PlatformSensor, "S_WIND")
	require.True(t, ok)
	require.Equal(t, []ValueType{"V_DIRECTION", "V_GUST", "V_WIND"}, v.Sorted())

	_, ok = ValueTypesFor(hass.PlatformLight, "S_TEMP")
	require.False(t, ok)

	for _, tt := range []struct {
		platform hass.Platform
		sType    SensorType
		vType    ValueType
		want     bool
	}{
		{hass.PlatformBinarySensor, "S_DOOR", "V_TRIPPED", true},
		{hass.PlatformSwitch, "S_DOOR", "V_ARMED", true},
		{hass.PlatformBinarySensor, "S_DOOR", "V_ARMED", false},
		{hass.PlatformCover, "S_COVER", "V_PERCENTAGE", true},
		{hass.PlatformLight, "S_COVER", "V_PERCENTAGE", false},
	} {
		t.Run(fmt.Sprintf("%s/%s/%s", tt.platform, tt.sType, tt.vType), func(t *testing.T) {
			require.Equal(t, tt.want, Supports(tt.platform, tt.sType, tt.vType))
		})
	}
}

func TestKnownSensorTypes(t *testing.T) {
	got := KnownSensorTypes()
	require.Len(t, got, len(TypeToPlatforms))
	require.True(t, slices.IsSorted(got))
	require.Contains(t, got, SensorType("S_DOOR"))
}
