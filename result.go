package hglue

import (
	"fmt"
	"log/slog"
)

// ResultKind distinguishes the three outcomes of setting up an Entry.
type ResultKind uint8

const (
	// ResultReady means setup ran to completion. SetupResult.OK tells whether it succeeded.
	ResultReady ResultKind = iota
	// ResultRetryLater means data setup depends on is not available yet. The host should try again later.
	ResultRetryLater
	// ResultRemoved means the Entry does not belong on this system and removal has been requested. It must not be
	// retried.
	ResultRemoved
)

func (k ResultKind) String() string {
	switch k {
	case ResultReady:
		return "ready"
	case ResultRetryLater:
		return "retry_later"
	case ResultRemoved:
		return "removed"
	default:
		panic(fmt.Errorf("invalid result kind: %d", k))
	}
}

// SetupResult is the outcome of Lifecycle.SetupEntry. Build one with Ready, RetryLater, or Removed. The zero value is
// Ready(false). It implements fmt.Stringer and slog.LogValuer.
type SetupResult struct {
	kind   ResultKind
	ok     bool
	reason string
}

// Ready is the result of a setup that ran to completion, successfully or not.
func Ready(ok bool) SetupResult {
	return SetupResult{kind: ResultReady, ok: ok}
}

// RetryLater is the result of a setup that could not decide yet because upstream data is unavailable.
func RetryLater(reason string) SetupResult {
	return SetupResult{kind: ResultRetryLater, reason: reason}
}

// Removed is the result of a setup that decided the Entry must go away.
func Removed(reason string) SetupResult {
	return SetupResult{kind: ResultRemoved, reason: reason}
}

// Kind returns which of the three outcomes this is.
func (r SetupResult) Kind() ResultKind {
	return r.kind
}

// OK reports whether the Entry is now set up. Only Ready(true) is OK.
func (r SetupResult) OK() bool {
	return r.kind == ResultReady && r.ok
}

// Reason is the human readable explanation given to RetryLater or Removed.
func (r SetupResult) Reason() string {
	return r.reason
}

func (r SetupResult) String() string {
	switch {
	case r.kind == ResultReady:
		return fmt.Sprintf("ready(%t)", r.ok)
	case r.reason != "":
		return fmt.Sprintf("%s: %s", r.kind, r.reason)
	default:
		return r.kind.String()
	}
}

func (r SetupResult) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", r.kind.String())}
	if r.kind == ResultReady {
		attrs = append(attrs, slog.Bool("ok", r.ok))
	}
	if r.reason != "" {
		attrs = append(attrs, slog.String("reason", r.reason))
	}

	return slog.GroupValue(attrs...)
}
