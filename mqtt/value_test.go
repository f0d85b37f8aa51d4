package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	topics []string
	opts   []WriteOptions
	values [][]byte
}

func (r *recordingWriter) WriteTopic(_ context.Context, topic string, options WriteOptions, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics = append(r.topics, topic)
	r.opts = append(r.opts, options)
	r.values = append(r.values, value)
	return nil
}

func TestValueWrite(t *testing.T) {
	w := &recordingWriter{}
	sut := NewValueWithOptions("state", StringMarshaler, WriteOptions{Retain: true})

	_, ok := sut.Get()
	require.False(t, ok)

	_, err := sut.Republish(context.Background(), w, "prefix")
	require.ErrorIs(t, err, ErrNeverWritten)

	got, err := sut.Write(context.Background(), w, "prefix", "loaded")
	require.NoError(t, err)
	require.Equal(t, "loaded", got)

	require.Equal(t, []string{"prefix/state"}, w.topics)
	require.Equal(t, []WriteOptions{{Retain: true}}, w.opts)
	require.Equal(t, [][]byte{[]byte("loaded")}, w.values)

	_, err = sut.Republish(context.Background(), w, "prefix")
	require.NoError(t, err)
	require.Len(t, w.values, 2)
}

func TestValueWriteNoMarshaler(t *testing.T) {
	sut := NewValue[string]("state", nil)

	_, err := sut.Write(context.Background(), &recordingWriter{}, "", "x")
	require.ErrorIs(t, err, ErrNoMarshaler)
}

func TestRemoteValueWatch(t *testing.T) {
	sut := NewRemoteValue("a/b", StringUnmarshaler)

	var first, second []string
	id1 := sut.Watch(func(s string) { first = append(first, s) })
	sut.Watch(func(s string) { second = append(second, s) })

	sut.ServeMQTT(nil, "a/b", []byte("one"))
	sut.ServeMQTT(nil, "other", []byte("ignored"))

	sut.Unwatch(id1)
	sut.ServeMQTT(nil, "/a/b/", []byte("two"))

	assert.Equal(t, []string{"one"}, first)
	assert.Equal(t, []string{"one", "two"}, second)

	v, ok := sut.Get()
	require.True(t, ok)
	require.Equal(t, "two", v)
}

func TestRemoteValueUnmarshalFailure(t *testing.T) {
	type payload struct {
		Board string `json:"board"`
	}

	sut := NewJsonRemoteValue[payload]("info", ReadOptions{})

	called := false
	sut.Watch(func(payload) { called = true })

	sut.ServeMQTT(nil, "info", []byte("{not json"))
	_, ok := sut.Get()
	require.False(t, ok)
	require.False(t, called)

	sut.ServeMQTT(nil, "info", []byte(`{"board":"green"}`))
	v, ok := sut.Get()
	require.True(t, ok)
	require.Equal(t, "green", v.Board)
	require.True(t, called)
}

func TestRemoteValueWatcherMayCallGet(t *testing.T) {
	sut := NewRemoteValue("t", StringUnmarshaler)

	var seen string
	sut.Watch(func(string) {
		seen, _ = sut.Get()
	})

	sut.ServeMQTT(nil, "t", []byte("v"))
	require.Equal(t, "v", seen)
}

func TestRemoteValueAwait(t *testing.T) {
	t.Run("Already Set", func(t *testing.T) {
		sut := NewRemoteValue("t", StringUnmarshaler)
		sut.ServeMQTT(nil, "t", []byte("ready"))

		got, err := sut.Await(context.Background(), DesiredValue("ready"))
		require.NoError(t, err)
		require.Equal(t, "ready", got)
	})

	t.Run("Later", func(t *testing.T) {
		sut := NewRemoteValue("t", StringUnmarshaler)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		go func() {
			sut.ServeMQTT(nil, "t", []byte("nope"))

			ticker := time.NewTicker(time.Millisecond)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sut.ServeMQTT(nil, "t", []byte("ready"))
				}
			}
		}()

		got, err := sut.Await(ctx, DesiredValue("ready"))
		require.NoError(t, err)
		require.Equal(t, "ready", got)
	})

	t.Run("Cancelled", func(t *testing.T) {
		sut := NewRemoteValue("t", StringUnmarshaler)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := sut.Await(ctx, DesiredValue("ready"))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestAppendSubscribeOptions(t *testing.T) {
	var nilValue *RemoteValue[string]
	require.Empty(t, nilValue.AppendSubscribeOptions(nil, "p"))

	sut := NewRemoteValueWithOptions("os/info", StringUnmarshaler, ReadOptions{QoS: QOSAtLeastOnce})
	got := sut.AppendSubscribeOptions(nil, "supervisor")

	require.Equal(t, []Subscription{{Topic: "supervisor/os/info", Options: ReadOptions{QoS: QOSAtLeastOnce}}}, got)
}
