// Package entries is the hub side of the config-entry lifecycle: it stores entries, calls into the integration that
// owns each one, and tracks the resulting hglue.EntryState.
package entries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/supervisor"
)

var (
	// ErrUnknownEntry is returned for entry ids the Manager does not hold.
	ErrUnknownEntry = errors.New("unknown entry")
	// ErrNoIntegration is returned when no hglue.Lifecycle is registered for an entry's domain.
	ErrNoIntegration = errors.New("no integration registered for domain")
	// ErrAlreadyRegistered is returned by Manager.Register for domains that already have an integration.
	ErrAlreadyRegistered = errors.New("integration already registered for domain")
	// ErrInvalidState is returned when an operation is not allowed in the entry's current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
)

// SupervisorInfo is what the Manager forwards to integrations through hglue.Host. supervisor.Source implements it.
type SupervisorInfo interface {
	IsSupervisor() bool
	OSInfo() (supervisor.OSInfo, bool)
}

// Manager holds config entries and drives their lifecycle. It implements hglue.Host for the integrations it calls and
// flow.EntryCreator for discovery flows.
type Manager struct {
	// SetupOnAdd makes Add set the new entry up before returning.
	SetupOnAdd bool

	info      SupervisorInfo
	publisher *StatePublisher

	// op serializes lifecycle calls so removal requested during a setup runs after that setup returned.
	op sync.Mutex

	mu           sync.Mutex
	integrations map[string]hglue.Lifecycle
	entries      map[string]*hglue.Entry
	order        []string
	removing     map[string]struct{}

	removals sync.WaitGroup

	log *slog.Logger
}

var _ hglue.Host = &Manager{}

// NewManager constructs a Manager. publisher may be nil.
func NewManager(info SupervisorInfo, publisher *StatePublisher) *Manager {
	return &Manager{
		info:      info,
		publisher: publisher,

		integrations: map[string]hglue.Lifecycle{},
		entries:      map[string]*hglue.Entry{},
		removing:     map[string]struct{}{},

		log: log.ForComponent("entries"),
	}
}

// IsSupervisor implements hglue.Host.
func (m *Manager) IsSupervisor() bool {
	return m.info != nil && m.info.IsSupervisor()
}

// OSInfo implements hglue.Host.
func (m *Manager) OSInfo() (supervisor.OSInfo, bool) {
	if m.info == nil {
		return supervisor.OSInfo{}, false
	}

	return m.info.OSInfo()
}

// RemoveEntry implements hglue.Host. The entry is removed on a new goroutine once the lifecycle call in progress has
// returned. Requests for an entry whose removal is already pending are ignored. Use Wait to block until requested
// removals finished.
func (m *Manager) RemoveEntry(id string) {
	m.mu.Lock()
	if _, pending := m.removing[id]; pending {
		m.mu.Unlock()
		m.log.With(log.Entry(id)).Debug("Removal already pending")
		return
	}
	m.removing[id] = struct{}{}
	m.mu.Unlock()

	m.removals.Add(1)
	go func() {
		defer m.removals.Done()
		defer func() {
			m.mu.Lock()
			delete(m.removing, id)
			m.mu.Unlock()
		}()

		if err := m.Remove(context.Background(), id); err != nil {
			m.log.With(log.Entry(id), log.Error(err)).Warn("Failed to remove entry")
		}
	}()
}

func (m *Manager) removalPending(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, pending := m.removing[id]
	return pending
}

// Wait blocks until every removal requested through RemoveEntry has finished.
func (m *Manager) Wait() {
	m.removals.Wait()
}

// Register assigns the integration that owns entries of domain.
func (m *Manager) Register(domain string, integration hglue.Lifecycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.integrations[domain]; ok {
		return fmt.Errorf("%s: %w", domain, ErrAlreadyRegistered)
	}

	m.integrations[domain] = integration
	return nil
}

// Add creates a new entry in hglue.EntryStateNotLoaded. When SetupOnAdd is set, the entry is set up before Add
// returns; the setup outcome is reflected in the returned entry's state but is not an error.
func (m *Manager) Add(ctx context.Context, domain, title string, source hglue.Source, data map[string]any) (*hglue.Entry, error) {
	if data == nil {
		data = map[string]any{}
	}

	e := &hglue.Entry{
		ID:     uuid.NewString(),
		Domain: domain,
		Title:  title,
		Source: source,
		Data:   data,
		State:  hglue.EntryStateNotLoaded,
	}

	m.mu.Lock()
	m.entries[e.ID] = e
	m.order = append(m.order, e.ID)
	m.mu.Unlock()

	m.log.With(slog.Any("entry", e)).Info("Added entry")
	m.publish(ctx, e.ID, e.State)

	if m.SetupOnAdd {
		if _, err := m.Setup(ctx, e.ID); err != nil {
			m.log.With(log.Entry(e.ID), log.Error(err)).Warn("Setup after add failed")
		}
	}

	got, ok := m.Get(e.ID)
	if !ok {
		// Setup removed it again.
		snapshot := *e
		snapshot.State = hglue.EntryStateRemoved
		return &snapshot, nil
	}

	return got, nil
}

// Get returns a snapshot of the entry with the specified id.
func (m *Manager) Get(id string) (*hglue.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}

	snapshot := *e
	return &snapshot, true
}

// Entries returns snapshots of the entries of domain in the order they were added. An empty domain returns every
// entry.
func (m *Manager) Entries(domain string) []*hglue.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*hglue.Entry
	for _, id := range m.order {
		e := m.entries[id]
		if domain != "" && e.Domain != domain {
			continue
		}

		snapshot := *e
		result = append(result, &snapshot)
	}

	return result
}

// Domains returns the domains with a registered integration in sorted order.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.integrations))
}

func (m *Manager) lookup(id string) (*hglue.Entry, hglue.Lifecycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", id, ErrUnknownEntry)
	}

	integration, ok := m.integrations[e.Domain]
	if !ok {
		return e, nil, fmt.Errorf("%s: %w", e.Domain, ErrNoIntegration)
	}

	return e, integration, nil
}

func (m *Manager) setState(ctx context.Context, id string, state hglue.EntryState) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		e.State = state
	}
	m.mu.Unlock()

	if ok {
		m.publish(ctx, id, state)
	}
}

func (m *Manager) snapshot(e *hglue.Entry) *hglue.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *e
	return &s
}

func (m *Manager) publish(ctx context.Context, id string, state hglue.EntryState) {
	if m.publisher == nil {
		return
	}

	if err := m.publisher.Publish(ctx, id, state); err != nil {
		m.log.With(log.Entry(id), slog.Any("state", state), log.Error(err)).Warn("Failed to publish entry state")
	}
}

// StateFor maps a setup outcome to the state the entry ends up in.
func StateFor(result hglue.SetupResult) hglue.EntryState {
	switch result.Kind() {
	case hglue.ResultRetryLater:
		return hglue.EntryStateSetupRetry
	case hglue.ResultRemoved:
		return hglue.EntryStateSetupError
	default:
		if result.OK() {
			return hglue.EntryStateLoaded
		}

		return hglue.EntryStateSetupError
	}
}

// Setup sets up the entry with the specified id. Only entries that are not loaded, failed setup, or wait for a retry
// can be set up.
func (m *Manager) Setup(ctx context.Context, id string) (hglue.SetupResult, error) {
	m.op.Lock()
	defer m.op.Unlock()

	e, integration, err := m.lookup(id)
	if err != nil {
		return hglue.Ready(false), err
	}

	entry := m.snapshot(e)
	if !entry.State.Recoverable() {
		return hglue.Ready(false), fmt.Errorf("setup %s in state %s: %w", id, entry.State, ErrInvalidState)
	}

	if m.removalPending(id) {
		return hglue.Ready(false), fmt.Errorf("setup %s with removal pending: %w", id, ErrInvalidState)
	}

	l := m.log.With(log.Entry(id), log.Domain(entry.Domain))
	l.Debug("Setting up entry")

	result := integration.SetupEntry(ctx, m, entry)
	state := StateFor(result)
	m.setState(ctx, id, state)

	l.With(slog.Any("result", result), slog.Any("state", state)).Info("Set up entry")
	return result, nil
}

// Unload unloads the entry with the specified id. Entries that are not loaded are marked not loaded without calling
// their integration.
func (m *Manager) Unload(ctx context.Context, id string) (bool, error) {
	m.op.Lock()
	defer m.op.Unlock()

	return m.unloadLocked(ctx, id)
}

func (m *Manager) unloadLocked(ctx context.Context, id string) (bool, error) {
	e, integration, err := m.lookup(id)
	if err != nil {
		return false, err
	}

	entry := m.snapshot(e)
	switch {
	case entry.State == hglue.EntryStateFailedUnload:
		return false, fmt.Errorf("unload %s in state %s: %w", id, entry.State, ErrInvalidState)
	case entry.State != hglue.EntryStateLoaded:
		m.setState(ctx, id, hglue.EntryStateNotLoaded)
		return true, nil
	}

	ok := integration.UnloadEntry(ctx, m, entry)
	if ok {
		m.setState(ctx, id, hglue.EntryStateNotLoaded)
	} else {
		m.setState(ctx, id, hglue.EntryStateFailedUnload)
	}

	m.log.With(log.Entry(id), slog.Bool("ok", ok)).Info("Unloaded entry")
	return ok, nil
}

// Remove unloads the entry with the specified id if it is loaded and forgets it.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.op.Lock()
	defer m.op.Unlock()

	e, _, err := m.lookup(id)
	if errors.Is(err, ErrUnknownEntry) {
		return err
	}

	if m.snapshot(e).State == hglue.EntryStateLoaded {
		// An unload failure does not keep the entry around.
		if _, err := m.unloadLocked(ctx, id); err != nil {
			m.log.With(log.Entry(id), log.Error(err)).Warn("Failed to unload entry before removal")
		}
	}

	m.setState(ctx, id, hglue.EntryStateRemoved)

	m.mu.Lock()
	delete(m.entries, id)
	m.order = slices.DeleteFunc(m.order, func(other string) bool { return other == id })
	m.mu.Unlock()

	if m.publisher != nil {
		m.publisher.Forget(id)
	}

	m.log.With(log.Entry(id)).Info("Removed entry")
	return nil
}

// SetupAll sets up every entry that is not loaded yet.
func (m *Manager) SetupAll(ctx context.Context) error {
	return m.setupWhere(ctx, func(s hglue.EntryState) bool { return s == hglue.EntryStateNotLoaded })
}

// RetryPending sets up every entry whose last setup asked to be retried later.
func (m *Manager) RetryPending(ctx context.Context) error {
	return m.setupWhere(ctx, func(s hglue.EntryState) bool { return s == hglue.EntryStateSetupRetry })
}

func (m *Manager) setupWhere(ctx context.Context, match func(hglue.EntryState) bool) error {
	var errs []error
	for _, e := range m.Entries("") {
		if !match(e.State) || m.removalPending(e.ID) {
			continue
		}

		if _, err := m.Setup(ctx, e.ID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
