package hglue

import (
	"fmt"
	"log/slog"
)

// EntryState tracks where a config Entry is in its lifecycle. It implements fmt.Stringer and slog.LogValuer.
type EntryState string

const (
	// EntryStateNotLoaded is the state of an Entry that was added but not set up yet, or was unloaded.
	EntryStateNotLoaded EntryState = "not_loaded"
	// EntryStateLoaded is the state of an Entry whose setup succeeded.
	EntryStateLoaded EntryState = "loaded"
	// EntryStateSetupError is the state of an Entry whose setup failed permanently.
	EntryStateSetupError EntryState = "setup_error"
	// EntryStateSetupRetry is the state of an Entry whose setup asked to be retried later.
	EntryStateSetupRetry EntryState = "setup_retry"
	// EntryStateFailedUnload is the state of an Entry whose unload reported failure.
	EntryStateFailedUnload EntryState = "failed_unload"
	// EntryStateRemoved is the final state of an Entry, published once before it is forgotten.
	EntryStateRemoved EntryState = "removed"
)

func (s EntryState) String() string {
	return string(s)
}

func (s EntryState) LogValue() slog.Value {
	return slog.StringValue(string(s))
}

// Recoverable reports whether an Entry in this state can be set up again without being re-added.
func (s EntryState) Recoverable() bool {
	switch s {
	case EntryStateNotLoaded, EntryStateSetupRetry, EntryStateSetupError:
		return true
	default:
		return false
	}
}

// Source records how an Entry was created.
type Source string

const (
	SourceUser      Source = "user"
	SourceDiscovery Source = "discovery"
	SourceZeroconf  Source = "zeroconf"
	SourceImport    Source = "import"
)

// Entry is a configured instance of an integration. Entries are owned by the host; integrations only read them.
type Entry struct {
	ID     string
	Domain string
	Title  string
	Source Source
	Data   map[string]any

	State EntryState
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s/%s)", e.Title, e.Domain, e.ID)
}

func (e *Entry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", e.ID),
		slog.String("domain", e.Domain),
		slog.String("title", e.Title),
		slog.String("source", string(e.Source)),
		slog.Any("state", e.State),
	)
}
