package hglue

import (
	"context"

	"github.com/nlowe/hglue/supervisor"
)

// Host is the part of the hub an integration may call back into while its entries are set up.
type Host interface {
	// IsSupervisor reports whether the hub runs under the supervisor.
	IsSupervisor() bool

	// OSInfo returns the operating system information fetched from the supervisor, if it has been fetched yet.
	OSInfo() (supervisor.OSInfo, bool)

	// RemoveEntry asks the host to remove the entry with the specified id. It returns immediately; removal happens
	// after the current setup call returns.
	RemoveEntry(id string)
}

// Lifecycle is implemented by every integration that owns config entries. The host calls SetupEntry when an entry is
// loaded and UnloadEntry when it is unloaded or removed.
type Lifecycle interface {
	SetupEntry(ctx context.Context, host Host, entry *Entry) SetupResult
	UnloadEntry(ctx context.Context, host Host, entry *Entry) bool
}
