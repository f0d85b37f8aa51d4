package mysensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/log"
)

// DefaultVersion is the protocol version assumed when an entry does not name one.
const DefaultVersion = "1.4"

// Gateway is the connection settings of a loaded gateway entry. It implements slog.LogValuer.
type Gateway struct {
	ID      GatewayID
	Device  string
	Type    GatewayType
	Version string
}

func (g Gateway) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", g.ID),
		slog.String("device", g.Device),
		slog.String("type", g.Type.String()),
		slog.String("version", g.Version),
	)
}

// GatewayFromEntry reads the gateway settings from the data of entry. The entry id becomes the GatewayID.
func GatewayFromEntry(entry *hglue.Entry) (Gateway, error) {
	gw := Gateway{ID: entry.ID, Type: GatewayTypeSerial, Version: DefaultVersion}

	var errs []error
	device, _ := entry.Data[ConfDevice].(string)
	if device == "" {
		errs = append(errs, fmt.Errorf("%s is required", ConfDevice))
	}
	gw.Device = device

	if raw, ok := entry.Data[ConfGatewayType]; ok {
		s, _ := raw.(string)
		t, err := ParseGatewayType(s)
		if err != nil {
			errs = append(errs, err)
		}
		gw.Type = t
	}

	if v, ok := entry.Data[ConfVersion].(string); ok && v != "" {
		gw.Version = v
	}

	return gw, errors.Join(errs...)
}

// Integration implements hglue.Lifecycle for gateway entries. Setting an entry up validates its settings and tracks
// the gateway until it is unloaded.
type Integration struct {
	mu       sync.Mutex
	gateways map[GatewayID]Gateway

	log *slog.Logger
}

var _ hglue.Lifecycle = &Integration{}

func New() *Integration {
	return &Integration{
		gateways: map[GatewayID]Gateway{},
		log:      log.ForComponent(Domain),
	}
}

func (i *Integration) SetupEntry(_ context.Context, _ hglue.Host, entry *hglue.Entry) hglue.SetupResult {
	l := i.log.With(log.Entry(entry.ID))

	gw, err := GatewayFromEntry(entry)
	if err != nil {
		l.With(log.Error(err)).Error("Invalid gateway settings")
		return hglue.Ready(false)
	}

	i.mu.Lock()
	i.gateways[gw.ID] = gw
	i.mu.Unlock()

	l.With(slog.Any("gateway", gw), slog.Any("platforms", Platforms)).Info("Gateway ready")
	return hglue.Ready(true)
}

func (i *Integration) UnloadEntry(_ context.Context, _ hglue.Host, entry *hglue.Entry) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.gateways, entry.ID)
	return true
}

// Gateway returns the loaded gateway with the specified id.
func (i *Integration) Gateway(id GatewayID) (Gateway, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	gw, ok := i.gateways[id]
	return gw, ok
}

// Gateways returns the ids of every loaded gateway in sorted order.
func (i *Integration) Gateways() []GatewayID {
	i.mu.Lock()
	defer i.mu.Unlock()

	return slices.Sorted(maps.Keys(i.gateways))
}
