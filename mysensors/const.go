package mysensors

import (
	"fmt"
	"strings"
	"time"
)

// Domain is the integration domain.
const Domain = "mysensors"

// Keys used in discovery info and entity attributes.
const (
	AttrDevices   = "devices"
	AttrGatewayID = "gateway_id"
	AttrNodeID    = "node_id"
)

// Keys of a gateway's config entry data.
const (
	ConfDevice          = "device"
	ConfBaudRate        = "baud_rate"
	ConfPersistenceFile = "persistence_file"
	ConfRetain          = "retain"
	ConfTCPPort         = "tcp_port"
	ConfTopicInPrefix   = "topic_in_prefix"
	ConfTopicOutPrefix  = "topic_out_prefix"
	ConfVersion         = "version"
	ConfGatewayType     = "gateway_type"
)

// ServiceSendIRCode is the service that sends an IR code through a remote child.
const ServiceSendIRCode = "send_ir_code"

// UpdateDelay debounces entity state writes after a burst of child updates.
const UpdateDelay = 100 * time.Millisecond

// Keys of shared runtime data and signal names.
const (
	PlatformKey         = "platform"
	SchemaKey           = "schema"
	TypeKey             = "type"
	GatewaysKey         = "mysensors_gateways"
	NodeDiscoverySignal = "mysensors_node_discovery"
)

// GatewayType is how a gateway is connected to the hub. It implements fmt.Stringer.
type GatewayType string

const (
	GatewayTypeSerial GatewayType = "Serial"
	GatewayTypeTCP    GatewayType = "TCP"
	GatewayTypeMQTT   GatewayType = "MQTT"
)

func (g GatewayType) String() string {
	return string(g)
}

// ParseGatewayType returns the GatewayType for s. Matching is case-insensitive.
func ParseGatewayType(s string) (GatewayType, error) {
	for _, g := range []GatewayType{GatewayTypeSerial, GatewayTypeTCP, GatewayTypeMQTT} {
		if strings.EqualFold(s, string(g)) {
			return g, nil
		}
	}

	return "", fmt.Errorf("unknown gateway type %q (valid: Serial, TCP, MQTT)", s)
}

// GatewayStartTask is the key of the task that starts the gateway of the specified entry.
func GatewayStartTask(gatewayID GatewayID) string {
	return fmt.Sprintf("mysensors_gateway_start_task_%s", gatewayID)
}

// DiscoveredNodesKey is the key holding the nodes discovered on the specified gateway.
func DiscoveredNodesKey(gatewayID GatewayID) string {
	return fmt.Sprintf("mysensors_discovered_nodes_%s", gatewayID)
}

// ChildCallbackSignal is the signal fired when a value of the child identified by id changes.
func ChildCallbackSignal(id DevID) string {
	return fmt.Sprintf("mysensors_child_callback_%s_%d_%d_%d", id.GatewayID, id.NodeID, id.ChildID, id.ValueType)
}

// NodeCallbackSignal is the signal fired when a node of a gateway changes.
func NodeCallbackSignal(gatewayID GatewayID, nodeID int) string {
	return fmt.Sprintf("mysensors_node_callback_%s_%d", gatewayID, nodeID)
}

// DiscoverySignal is the signal fired when new devices of a platform are discovered on a gateway.
func DiscoverySignal(gatewayID GatewayID, platform fmt.Stringer) string {
	return fmt.Sprintf("mysensors_discovery_%s_%s", gatewayID, platform)
}

// OnUnloadSignal is the key of the callbacks run when the specified gateway's entry is unloaded.
func OnUnloadSignal(gatewayID GatewayID) string {
	return fmt.Sprintf("mysensors_on_unload_%s", gatewayID)
}
