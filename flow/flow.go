// Package flow implements single-instance discovery config flows. An integration registers a flow with a title and a
// predicate that tells whether any devices can be found. Discovery sources then report the domain through Discover,
// and users start the same flow manually through User.
//
// A discovery flow creates at most one entry per domain.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/log"
)

var (
	// ErrAlreadyRegistered is returned by Registry.RegisterDiscoveryFlow when the domain already has a flow.
	ErrAlreadyRegistered = errors.New("discovery flow already registered")
	// ErrUnknownDomain is returned when a flow is started for a domain nothing registered.
	ErrUnknownDomain = errors.New("no discovery flow registered for domain")
	// ErrUnknownFlow is returned by Registry.Confirm for flow ids that are not in progress.
	ErrUnknownFlow = errors.New("flow not in progress")
)

// Predicate reports whether any device of the integration can be discovered.
type Predicate func(ctx context.Context) bool

// Always is a Predicate that reports every integration as discoverable.
func Always(context.Context) bool {
	return true
}

// ResultType is the type of a step Result.
type ResultType string

const (
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
	ResultForm        ResultType = "form"
)

// Abort reasons.
const (
	AbortSingleInstance = "single_instance_allowed"
	AbortNoDevicesFound = "no_devices_found"
)

// StepConfirm is the id of the step a discovered flow waits in until Registry.Confirm is called.
const StepConfirm = "confirm"

// Result is what a flow step returns. It implements slog.LogValuer.
type Result struct {
	Type   ResultType
	FlowID string
	Domain string

	// Reason is set for ResultAbort.
	Reason string
	// StepID is set for ResultForm.
	StepID string
	// Entry is set for ResultCreateEntry.
	Entry *hglue.Entry
}

func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", string(r.Type)),
		slog.String("domain", r.Domain),
	}

	switch r.Type {
	case ResultAbort:
		attrs = append(attrs, slog.String("reason", r.Reason))
	case ResultForm:
		attrs = append(attrs, slog.String("flow_id", r.FlowID), slog.String("step_id", r.StepID))
	case ResultCreateEntry:
		attrs = append(attrs, slog.String("entry_id", r.Entry.ID))
	}

	return slog.GroupValue(attrs...)
}

// EntryCreator is the part of the host's entry manager that flows need.
type EntryCreator interface {
	Entries(domain string) []*hglue.Entry
	Add(ctx context.Context, domain, title string, source hglue.Source, data map[string]any) (*hglue.Entry, error)
}

// Flow is a registered discovery flow. It implements hglue.Lifecycle for the entries it creates, which carry no
// state and always set up and unload successfully.
type Flow struct {
	Domain       string
	Title        string
	Discoverable Predicate
}

var _ hglue.Lifecycle = &Flow{}

func (f *Flow) SetupEntry(context.Context, hglue.Host, *hglue.Entry) hglue.SetupResult {
	return hglue.Ready(true)
}

func (f *Flow) UnloadEntry(context.Context, hglue.Host, *hglue.Entry) bool {
	return true
}

type progress struct {
	id     string
	seq    uint64
	domain string
	source hglue.Source
}

// Registry holds discovery flows by domain and the flows currently waiting for confirmation.
type Registry struct {
	// AutoConfirm skips the confirm step for discovered flows and creates the entry right away. Hubs that have not
	// been onboarded yet have nobody to confirm.
	AutoConfirm bool

	mu         sync.Mutex
	flows      map[string]*Flow
	inProgress map[string]*progress
	nextSeq    uint64

	log *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:      map[string]*Flow{},
		inProgress: map[string]*progress{},

		log: log.ForComponent("flow"),
	}
}

// DefaultRegistry is the Registry integrations register with from their init functions.
var DefaultRegistry = NewRegistry()

// RegisterDiscoveryFlow registers a flow with DefaultRegistry. It panics if the domain is already registered, since
// that can only happen when two integrations claim the same domain.
func RegisterDiscoveryFlow(domain, title string, discoverable Predicate) {
	if err := DefaultRegistry.RegisterDiscoveryFlow(domain, title, discoverable); err != nil {
		panic(err)
	}
}

// RegisterDiscoveryFlow registers a discovery flow for domain. The title is used for entries the flow creates. A nil
// predicate is treated as Always.
func (r *Registry) RegisterDiscoveryFlow(domain, title string, discoverable Predicate) error {
	if discoverable == nil {
		discoverable = Always
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flows[domain]; ok {
		return fmt.Errorf("%s: %w", domain, ErrAlreadyRegistered)
	}

	r.flows[domain] = &Flow{Domain: domain, Title: title, Discoverable: discoverable}
	r.log.With(log.Domain(domain), slog.String("title", title)).Debug("Registered discovery flow")
	return nil
}

// Lookup returns the flow registered for domain.
func (r *Registry) Lookup(domain string) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flows[domain]
	return f, ok
}

// Domains returns the registered domains in sorted order.
func (r *Registry) Domains() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]string, 0, len(r.flows))
	for d := range r.flows {
		result = append(result, d)
	}

	slices.Sort(result)
	return result
}

// InProgress returns the ids of discovered flows for domain that wait for confirmation.
func (r *Registry) InProgress(domain string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.inProgressLocked(domain)
}

// OldestInProgress returns the id of the earliest discovered flow for domain that waits for confirmation, or the empty
// string.
func (r *Registry) OldestInProgress(domain string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *progress
	for _, p := range r.inProgress {
		if p.domain == domain && (oldest == nil || p.seq < oldest.seq) {
			oldest = p
		}
	}

	if oldest == nil {
		return ""
	}

	return oldest.id
}

func (r *Registry) inProgressLocked(domain string) []string {
	var result []string
	for id, p := range r.inProgress {
		if p.domain == domain {
			result = append(result, id)
		}
	}

	slices.Sort(result)
	return result
}

// Discover starts the flow for domain on behalf of a discovery source. It aborts with AbortSingleInstance when the
// domain already has an entry or a discovered flow in progress. Otherwise the flow waits in StepConfirm, or creates the
// entry immediately when AutoConfirm is set.
func (r *Registry) Discover(ctx context.Context, entries EntryCreator, domain string, source hglue.Source) (Result, error) {
	f, ok := r.Lookup(domain)
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", domain, ErrUnknownDomain)
	}

	r.mu.Lock()
	if len(r.inProgressLocked(domain)) > 0 || len(entries.Entries(domain)) > 0 {
		r.mu.Unlock()
		return r.abort(domain, "", AbortSingleInstance), nil
	}

	r.nextSeq++
	p := &progress{id: uuid.NewString(), seq: r.nextSeq, domain: domain, source: source}
	r.inProgress[p.id] = p
	autoConfirm := r.AutoConfirm
	r.mu.Unlock()

	if !autoConfirm {
		r.log.With(log.Domain(domain), slog.String("flow_id", p.id)).Info("Discovered integration, waiting for confirmation")
		return Result{Type: ResultForm, FlowID: p.id, Domain: domain, StepID: StepConfirm}, nil
	}

	// The flow stays in progress while the entry is created so concurrent discoveries abort.
	defer func() {
		r.mu.Lock()
		delete(r.inProgress, p.id)
		r.mu.Unlock()
	}()

	return r.create(ctx, entries, f, p)
}

// Confirm finishes a discovered flow that waits in StepConfirm.
func (r *Registry) Confirm(ctx context.Context, entries EntryCreator, flowID string) (Result, error) {
	r.mu.Lock()
	p, ok := r.inProgress[flowID]
	if ok {
		delete(r.inProgress, flowID)
	}
	r.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("%s: %w", flowID, ErrUnknownFlow)
	}

	f, ok := r.Lookup(p.domain)
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", p.domain, ErrUnknownDomain)
	}

	if len(entries.Entries(p.domain)) > 0 {
		return r.abort(p.domain, flowID, AbortSingleInstance), nil
	}

	return r.create(ctx, entries, f, p)
}

// User runs the flow for domain as started by a user. Discovered flows in progress count as found devices and are
// aborted in favor of this one; without any, the flow's predicate decides. It aborts with AbortNoDevicesFound when
// nothing can be discovered and with AbortSingleInstance when the domain already has an entry.
func (r *Registry) User(ctx context.Context, entries EntryCreator, domain string) (Result, error) {
	f, ok := r.Lookup(domain)
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", domain, ErrUnknownDomain)
	}

	if len(entries.Entries(domain)) > 0 {
		return r.abort(domain, "", AbortSingleInstance), nil
	}

	r.mu.Lock()
	pending := r.inProgressLocked(domain)
	for _, id := range pending {
		delete(r.inProgress, id)
	}
	r.mu.Unlock()

	if len(pending) > 0 {
		r.log.With(log.Domain(domain), slog.Any("flows", pending)).Debug("Aborted discovered flows in favor of user flow")
	} else if !f.Discoverable(ctx) {
		return r.abort(domain, "", AbortNoDevicesFound), nil
	}

	return r.create(ctx, entries, f, &progress{id: uuid.NewString(), domain: domain, source: hglue.SourceUser})
}

func (r *Registry) create(ctx context.Context, entries EntryCreator, f *Flow, p *progress) (Result, error) {
	entry, err := entries.Add(ctx, f.Domain, f.Title, p.source, map[string]any{})
	if err != nil {
		return Result{}, fmt.Errorf("%s: create entry: %w", f.Domain, err)
	}

	r.log.With(log.Domain(f.Domain), log.Entry(entry.ID)).Info("Created entry")
	return Result{Type: ResultCreateEntry, FlowID: p.id, Domain: f.Domain, Entry: entry}, nil
}

func (r *Registry) abort(domain, flowID, reason string) Result {
	r.log.With(log.Domain(domain), slog.String("reason", reason)).Debug("Aborted flow")
	return Result{Type: ResultAbort, FlowID: flowID, Domain: domain, Reason: reason}
}
