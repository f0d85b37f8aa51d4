package hass

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nlowe/hglue/mqtt"
)

func TestStatus(t *testing.T) {
	var gotTopic, gotPayload string
	var gotOpts mqtt.WriteOptions
	w := mqtt.WriterFunc(func(_ context.Context, topic string, opts mqtt.WriteOptions, value []byte) error {
		gotTopic, gotOpts, gotPayload = topic, opts, string(value)
		return nil
	})

	_, err := NewStatus().Write(context.Background(), w, "hglue", Available)
	require.NoError(t, err)

	require.Equal(t, "hglue/status", gotTopic)
	require.Equal(t, "online", gotPayload)
	require.True(t, gotOpts.Retain)
	require.Equal(t, mqtt.QOSAtLeastOnce, gotOpts.QoS)
}

func TestAvailabilityUnmarshaler(t *testing.T) {
	got, err := AvailabilityUnmarshaler([]byte("offline"))
	require.NoError(t, err)
	require.Equal(t, Unavailable, got)
}
