package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlowe/hglue"
)

type fakeEntries struct {
	mu      sync.Mutex
	entries []*hglue.Entry
	err     error
}

func (f *fakeEntries) Entries(domain string) []*hglue.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*hglue.Entry
	for _, e := range f.entries {
		if e.Domain == domain {
			result = append(result, e)
		}
	}

	return result
}

func (f *fakeEntries) Add(_ context.Context, domain, title string, source hglue.Source, data map[string]any) (*hglue.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	e := &hglue.Entry{
		ID:     fmt.Sprintf("entry-%d", len(f.entries)+1),
		Domain: domain,
		Title:  title,
		Source: source,
		Data:   data,
		State:  hglue.EntryStateNotLoaded,
	}
	f.entries = append(f.entries, e)
	return e, nil
}

func newTestRegistry(t *testing.T, discoverable Predicate) *Registry {
	t.Helper()

	r := NewRegistry()
	require.NoError(t, r.RegisterDiscoveryFlow("ios", "Home Assistant iOS", discoverable))
	return r
}

func TestRegisterDiscoveryFlow(t *testing.T) {
	r := newTestRegistry(t, nil)

	err := r.RegisterDiscoveryFlow("ios", "Again", Always)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	f, ok := r.Lookup("ios")
	require.True(t, ok)
	assert.Equal(t, "Home Assistant iOS", f.Title)
	assert.True(t, f.Discoverable(context.Background()), "nil predicate should default to Always")

	require.NoError(t, r.RegisterDiscoveryFlow("android", "Android", Always))
	require.Equal(t, []string{"android", "ios"}, r.Domains())
}

func TestDefaultRegistryPanicsOnDuplicate(t *testing.T) {
	old := DefaultRegistry
	DefaultRegistry = NewRegistry()
	t.Cleanup(func() { DefaultRegistry = old })

	RegisterDiscoveryFlow("x", "X", Always)
	require.Panics(t, func() {
		RegisterDiscoveryFlow("x", "X", Always)
	})
}

func TestDiscover(t *testing.T) {
	t.Run("Unknown Domain", func(t *testing.T) {
		_, err := NewRegistry().Discover(context.Background(), &fakeEntries{}, "nope", hglue.SourceZeroconf)
		require.ErrorIs(t, err, ErrUnknownDomain)
	})

	t.Run("Confirm", func(t *testing.T) {
		r := newTestRegistry(t, Always)
		entries := &fakeEntries{}

		got, err := r.Discover(context.Background(), entries, "ios", hglue.SourceZeroconf)
		require.NoError(t, err)
		require.Equal(t, ResultForm, got.Type)
		require.Equal(t, StepConfirm, got.StepID)
		require.Equal(t, []string{got.FlowID}, r.InProgress("ios"))

		again, err := r.Discover(context.Background(), entries, "ios", hglue.SourceZeroconf)
		require.NoError(t, err)
		require.Equal(t, ResultAbort, again.Type)
		require.Equal(t, AbortSingleInstance, again.Reason)

		created, err := r.Confirm(context.Background(), entries, got.FlowID)
		require.NoError(t, err)
		require.Equal(t, ResultCreateEntry, created.Type)
		require.Equal(t, hglue.SourceZeroconf, created.Entry.Source)
		require.Equal(t, "Home Assistant iOS", created.Entry.Title)
		require.Empty(t, r.InProgress("ios"))

		_, err = r.Confirm(context.Background(), entries, got.FlowID)
		require.ErrorIs(t, err, ErrUnknownFlow)

		afterEntry, err := r.Discover(context.Background(), entries, "ios", hglue.SourceZeroconf)
		require.NoError(t, err)
		require.Equal(t, AbortSingleInstance, afterEntry.Reason)
	})

	t.Run("Auto Confirm", func(t *testing.T) {
		r := newTestRegistry(t, Always)
		r.AutoConfirm = true
		entries := &fakeEntries{}

		got, err := r.Discover(context.Background(), entries, "ios", hglue.SourceDiscovery)
		require.NoError(t, err)
		require.Equal(t, ResultCreateEntry, got.Type)
		require.Len(t, entries.Entries("ios"), 1)
		require.Empty(t, r.InProgress("ios"))
	})

	t.Run("Create Fails", func(t *testing.T) {
		r := newTestRegistry(t, Always)
		r.AutoConfirm = true
		boom := errors.New("boom")

		_, err := r.Discover(context.Background(), &fakeEntries{err: boom}, "ios", hglue.SourceDiscovery)
		require.ErrorIs(t, err, boom)
		require.Empty(t, r.InProgress("ios"))
	})
}

func TestUser(t *testing.T) {
	t.Run("Creates Entry", func(t *testing.T) {
		r := newTestRegistry(t, Always)
		entries := &fakeEntries{}

		got, err := r.User(context.Background(), entries, "ios")
		require.NoError(t, err)
		require.Equal(t, ResultCreateEntry, got.Type)
		require.Equal(t, hglue.SourceUser, got.Entry.Source)

		again, err := r.User(context.Background(), entries, "ios")
		require.NoError(t, err)
		require.Equal(t, ResultAbort, again.Type)
		require.Equal(t, AbortSingleInstance, again.Reason)
	})

	t.Run("No Devices", func(t *testing.T) {
		r := newTestRegistry(t, func(context.Context) bool { return false })

		got, err := r.User(context.Background(), &fakeEntries{}, "ios")
		require.NoError(t, err)
		require.Equal(t, ResultAbort, got.Type)
		require.Equal(t, AbortNoDevicesFound, got.Reason)
	})

	t.Run("Discovered Flow Counts As Device", func(t *testing.T) {
		r := newTestRegistry(t, func(context.Context) bool { return false })
		entries := &fakeEntries{}

		discovered, err := r.Discover(context.Background(), entries, "ios", hglue.SourceZeroconf)
		require.NoError(t, err)
		require.Equal(t, ResultForm, discovered.Type)

		got, err := r.User(context.Background(), entries, "ios")
		require.NoError(t, err)
		require.Equal(t, ResultCreateEntry, got.Type)
		require.Empty(t, r.InProgress("ios"), "user flow should abort discovered flows")
	})

	t.Run("Unknown Domain", func(t *testing.T) {
		_, err := NewRegistry().User(context.Background(), &fakeEntries{}, "nope")
		require.ErrorIs(t, err, ErrUnknownDomain)
	})
}

func TestFlowLifecycle(t *testing.T) {
	f := &Flow{Domain: "ios", Title: "Home Assistant iOS", Discoverable: Always}

	require.True(t, f.SetupEntry(context.Background(), nil, &hglue.Entry{}).OK())
	require.True(t, f.UnloadEntry(context.Background(), nil, &hglue.Entry{}))
}
