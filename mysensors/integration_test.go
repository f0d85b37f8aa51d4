package mysensors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hglue"
)

func TestGatewayFromEntry(t *testing.T) {
	for _, tt := range []struct {
		name    string
		data    map[string]any
		want    Gateway
		wantErr bool
	}{
		{
			name: "Defaults",
			data: map[string]any{ConfDevice: "/dev/ttyUSB0"},
			want: Gateway{ID: "gw", Device: "/dev/ttyUSB0", Type: GatewayTypeSerial, Version: DefaultVersion},
		},
		{
			name: "TCP",
			data: map[string]any{ConfDevice: "10.0.0.5", ConfGatewayType: "tcp", ConfVersion: "2.3"},
			want: Gateway{ID: "gw", Device: "10.0.0.5", Type: GatewayTypeTCP, Version: "2.3"},
		},
		{
			name:    "Missing Device",
			data:    map[string]any{},
			wantErr: true,
		},
		{
			name:    "Bad Type",
			data:    map[string]any{ConfDevice: "x", ConfGatewayType: "carrier pigeon"},
			wantErr: true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GatewayFromEntry(&hglue.Entry{ID: "gw", Data: tt.data})
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntegration(t *testing.T) {
	sut := New()
	ctx := context.Background()

	good := &hglue.Entry{ID: "a", Domain: Domain, Data: map[string]any{ConfDevice: "mqtt", ConfGatewayType: "MQTT"}}
	bad := &hglue.Entry{ID: "b", Domain: Domain, Data: map[string]any{}}

	require.Equal(t, hglue.Ready(true), sut.SetupEntry(ctx, nil, good))
	require.Equal(t, hglue.Ready(false), sut.SetupEntry(ctx, nil, bad))
	require.Equal(t, []GatewayID{"a"}, sut.Gateways())

	gw, ok := sut.Gateway("a")
	require.True(t, ok)
	require.Equal(t, GatewayTypeMQTT, gw.Type)

	require.True(t, sut.UnloadEntry(ctx, nil, good))
	require.Empty(t, sut.Gateways())
}
