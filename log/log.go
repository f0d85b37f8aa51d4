// Package log holds the slog plumbing shared by every hglue package. Nothing is written until To is called with a
// handler.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

const (
	ComponentKey = "component"
	ErrorKey     = "error"
	EntryKey     = "entry_id"
	DomainKey    = "domain"

	// LevelTrace sits below slog.LevelDebug and is used for raw payload dumps.
	LevelTrace = slog.Level(-8)
)

// Error returns a slog.Attr for the provided error. The key will be ErrorKey.
func Error(e error) slog.Attr {
	return slog.Any(ErrorKey, e)
}

// Entry returns a slog.Attr for a config entry id. The key will be EntryKey.
func Entry(id string) slog.Attr {
	return slog.String(EntryKey, id)
}

// Domain returns a slog.Attr for an integration domain. The key will be DomainKey.
func Domain(domain string) slog.Attr {
	return slog.String(DomainKey, domain)
}

// ParseLevel converts a case-insensitive level name to a slog.Level. The empty string maps to slog.LevelInfo.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

// indirectHandler is a small wrapper around a slog.Handler that allows swapping out the underlying handler on demand.
type indirectHandler struct {
	h atomic.Pointer[slog.Handler]
}

func (i *indirectHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := i.h.Load()
	if h == nil {
		return false
	}

	return (*h).Enabled(ctx, level)
}

func (i *indirectHandler) Handle(ctx context.Context, record slog.Record) error {
	h := i.h.Load()
	if h == nil {
		return nil
	}

	return (*h).Handle(ctx, record)
}

func (i *indirectHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &boundHandler{parent: i, attrs: attrs}
}

func (i *indirectHandler) WithGroup(name string) slog.Handler {
	return &boundHandler{parent: i, group: name}
}

// boundHandler remembers attrs and groups added before To was called so loggers created at init time still pick up
// the handler installed later.
type boundHandler struct {
	parent slog.Handler
	attrs  []slog.Attr
	group  string
}

func (b *boundHandler) resolve() slog.Handler {
	h := b.parent
	if p, ok := h.(*boundHandler); ok {
		h = p.resolve()
	} else if p, ok := h.(*indirectHandler); ok {
		loaded := p.h.Load()
		if loaded == nil {
			return nil
		}
		h = *loaded
	}

	if h == nil {
		return nil
	}

	if b.group != "" {
		return h.WithGroup(b.group)
	}

	return h.WithAttrs(b.attrs)
}

func (b *boundHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h := b.resolve()
	if h == nil {
		return false
	}

	return h.Enabled(ctx, level)
}

func (b *boundHandler) Handle(ctx context.Context, record slog.Record) error {
	h := b.resolve()
	if h == nil {
		return nil
	}

	return h.Handle(ctx, record)
}

func (b *boundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &boundHandler{parent: b, attrs: attrs}
}

func (b *boundHandler) WithGroup(name string) slog.Handler {
	return &boundHandler{parent: b, group: name}
}

var (
	_ slog.Handler = &indirectHandler{}
	_ slog.Handler = &boundHandler{}
)

var (
	sink = &indirectHandler{h: atomic.Pointer[slog.Handler]{}}
)

// To updates all slog.Logger objects used internally by hglue to write logs to the provided slog.Handler. By default,
// log values will be discarded unless To is called at least once with a non-discarding slog.Handler.
func To(h slog.Handler) {
	sink.h.Store(&h)
}

// ForComponent constructs a slog.Logger for the specified component (which is stored in an attribute with the key
// ComponentKey).
func ForComponent(component string) *slog.Logger {
	return slog.New(sink).With(slog.String(ComponentKey, component))
}
