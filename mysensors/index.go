package mysensors

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nlowe/hglue/hass"
)

// ErrDuplicatePlatformType is returned by Flatten when a (platform, sensor type) pair is declared more than once.
var ErrDuplicatePlatformType = errors.New("duplicate platform sensor type")

// PlatformTable assigns a TypeTable to a platform.
type PlatformTable struct {
	Platform hass.Platform
	Types    TypeTable
}

// PlatformSensorKey is the key of a FlatTable. It implements fmt.Stringer.
type PlatformSensorKey struct {
	Platform   hass.Platform
	SensorType SensorType
}

func (k PlatformSensorKey) String() string {
	return fmt.Sprintf("%s/%s", k.Platform, k.SensorType)
}

// FlatTable maps every (platform, sensor type) pair to its value types.
type FlatTable map[PlatformSensorKey]ValueTypeSet

// Flatten merges tables into a single FlatTable. Declaring the same (platform, sensor type) pair twice, e.g. by
// listing a platform twice with overlapping tables, is an error wrapping ErrDuplicatePlatformType.
func Flatten(tables []PlatformTable) (FlatTable, error) {
	result := FlatTable{}

	var errs []error
	for _, t := range tables {
		for sType, vTypes := range t.Types {
			k := PlatformSensorKey{Platform: t.Platform, SensorType: sType}
			if _, ok := result[k]; ok {
				errs = append(errs, fmt.Errorf("%s: %w", k, ErrDuplicatePlatformType))
				continue
			}

			result[k] = vTypes
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return result, nil
}

// MustFlatten is like Flatten but panics on error. Use it for tables declared in source.
func MustFlatten(tables []PlatformTable) FlatTable {
	result, err := Flatten(tables)
	if err != nil {
		panic(err)
	}

	return result
}

// InvertPlatforms maps every sensor type of tables to the platforms declaring it, in the order of tables.
func InvertPlatforms(tables []PlatformTable) map[SensorType][]hass.Platform {
	result := map[SensorType][]hass.Platform{}

	for _, t := range tables {
		for _, sType := range sortedSensorTypes(t.Types) {
			if slices.Contains(result[sType], t.Platform) {
				continue
			}

			result[sType] = append(result[sType], t.Platform)
		}
	}

	return result
}

func sortedSensorTypes(t TypeTable) []SensorType {
	result := make([]SensorType, 0, len(t))
	for sType := range t {
		result = append(result, sType)
	}

	slices.Sort(result)
	return result
}

func platformsOf(tables []PlatformTable) []hass.Platform {
	result := make([]hass.Platform, 0, len(tables))
	for _, t := range tables {
		if !slices.Contains(result, t.Platform) {
			result = append(result, t.Platform)
		}
	}

	return result
}

// KnownSensorTypes returns every sensor type some platform handles, in lexical order.
func KnownSensorTypes() []SensorType {
	return slices.Sorted(maps.Keys(TypeToPlatforms))
}

// PlatformsFor returns the platforms creating entities for sType, in declaration order. The returned slice is a copy.
func PlatformsFor(sType SensorType) []hass.Platform {
	return slices.Clone(TypeToPlatforms[sType])
}

// ValueTypesFor returns the value types platform handles for sType.
func ValueTypesFor(platform hass.Platform, sType SensorType) (ValueTypeSet, bool) {
	v, ok := FlatPlatformTypes[PlatformSensorKey{Platform: platform, SensorType: sType}]
	return v, ok
}

// Supports reports whether platform creates an entity for value type vType of a child presenting as sType.
func Supports(platform hass.Platform, sType SensorType, vType ValueType) bool {
	v, ok := ValueTypesFor(platform, sType)
	return ok && v.Has(vType)
}
