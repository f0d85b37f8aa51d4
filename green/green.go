// Package green keeps the Green board integration's config entry alive only on the hardware it was made for. On any
// other machine, or when the supervisor is absent (the installation was migrated), the entry removes itself.
package green

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/log"
)

const (
	// Domain is the integration domain entries of this integration are registered under.
	Domain = "homeassistant_green"
	// Title is the display name of the integration.
	Title = "Home Assistant Green"
	// TargetBoard is the supervisor board identifier of the Green.
	TargetBoard = "green"
)

// Integration implements hglue.Lifecycle for Green entries.
type Integration struct {
	// Board overrides TargetBoard when not empty.
	Board string

	log *slog.Logger
}

var _ hglue.Lifecycle = &Integration{}

// New constructs an Integration that accepts TargetBoard.
func New() *Integration {
	return &Integration{
		log: log.ForComponent(Domain),
	}
}

func (i *Integration) target() string {
	if i.Board != "" {
		return i.Board
	}

	return TargetBoard
}

func (i *Integration) logger() *slog.Logger {
	if i.log == nil {
		i.log = log.ForComponent(Domain)
	}

	return i.log
}

// SetupEntry decides whether entry stays. Without the supervisor or on a different board, removal of the entry is
// requested from host and hglue.Removed is returned. When the supervisor has not delivered OS info yet,
// hglue.RetryLater is returned so the host tries again once it has.
func (i *Integration) SetupEntry(_ context.Context, host hglue.Host, entry *hglue.Entry) hglue.SetupResult {
	l := i.logger().With(log.Entry(entry.ID))

	if !host.IsSupervisor() {
		l.Warn("Not running under the supervisor, removing entry")
		host.RemoveEntry(entry.ID)
		return hglue.Removed("not running under the supervisor")
	}

	info, ok := host.OSInfo()
	if !ok {
		l.Debug("Supervisor os info not fetched yet")
		return hglue.RetryLater("supervisor os info not available yet")
	}

	if info.Board != i.target() {
		l.With(slog.String("board", info.Board), slog.String("want", i.target())).Warn("Not running on the expected board, removing entry")
		host.RemoveEntry(entry.ID)
		return hglue.Removed("unexpected board " + quoteBoard(info.Board))
	}

	l.Debug("Board matches")
	return hglue.Ready(true)
}

// UnloadEntry always succeeds, there is nothing to release.
func (i *Integration) UnloadEntry(context.Context, hglue.Host, *hglue.Entry) bool {
	return true
}

func quoteBoard(board string) string {
	if board == "" {
		return "(none)"
	}

	return strconv.Quote(board)
}
