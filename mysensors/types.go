package mysensors

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// SensorType is the capability class a child declares when it presents itself, e.g. S_DOOR or S_TEMP.
type SensorType string

// ValueType is the kind of reading or command a child exchanges, e.g. V_TRIPPED or V_TEMP.
type ValueType string

// ValueTypeSet is a set of ValueType.
type ValueTypeSet map[ValueType]struct{}

// NewValueTypeSet returns a set holding values.
func NewValueTypeSet(values ...ValueType) ValueTypeSet {
	s := make(ValueTypeSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}

	return s
}

// Has reports whether v is in the set.
func (s ValueTypeSet) Has(v ValueType) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members of the set in lexical order.
func (s ValueTypeSet) Sorted() []ValueType {
	return slices.Sorted(maps.Keys(s))
}

// TypeTable maps a SensorType to the value types a platform handles for it.
type TypeTable map[SensorType]ValueTypeSet

// GatewayID identifies a gateway. It is the id of the gateway's config entry.
type GatewayID = string

// DevID is the stable key of the entity created for one value type of one child of one node. It implements
// fmt.Stringer and slog.LogValuer.
type DevID struct {
	GatewayID GatewayID
	NodeID    int
	ChildID   int
	// ValueType is the numeric value type as sent on the wire.
	ValueType int
}

func (d DevID) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", d.GatewayID, d.NodeID, d.ChildID, d.ValueType)
}

func (d DevID) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("gateway_id", d.GatewayID),
		slog.Int("node_id", d.NodeID),
		slog.Int("child_id", d.ChildID),
		slog.Int("value_type", d.ValueType),
	)
}

// DiscoveryInfo is handed to a platform when new devices of that platform were found on a gateway.
type DiscoveryInfo struct {
	Devices   []DevID   `json:"devices"`
	GatewayID GatewayID `json:"gateway_id"`
}

// NodeDiscoveryInfo describes a newly discovered node.
type NodeDiscoveryInfo struct {
	GatewayID GatewayID `json:"gateway_id"`
	NodeID    int       `json:"node_id"`
}
