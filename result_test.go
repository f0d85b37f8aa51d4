package hglue

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupResult(t *testing.T) {
	for _, tt := range []struct {
		name   string
		sut    SetupResult
		kind   ResultKind
		ok     bool
		reason string
		str    string
	}{
		{name: "Zero", sut: SetupResult{}, kind: ResultReady, str: "ready(false)"},
		{name: "Ready", sut: Ready(true), kind: ResultReady, ok: true, str: "ready(true)"},
		{name: "Failed", sut: Ready(false), kind: ResultReady, str: "ready(false)"},
		{name: "Retry", sut: RetryLater("no os info"), kind: ResultRetryLater, reason: "no os info", str: "retry_later: no os info"},
		{name: "Retry No Reason", sut: RetryLater(""), kind: ResultRetryLater, str: "retry_later"},
		{name: "Removed", sut: Removed("wrong board"), kind: ResultRemoved, reason: "wrong board", str: "removed: wrong board"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.sut.Kind())
			assert.Equal(t, tt.ok, tt.sut.OK())
			assert.Equal(t, tt.reason, tt.sut.Reason())
			assert.Equal(t, tt.str, tt.sut.String())
		})
	}
}

func TestSetupResultRetryAndRemovedAreNeverOK(t *testing.T) {
	require.False(t, RetryLater("x").OK())
	require.False(t, Removed("x").OK())
	require.NotEqual(t, RetryLater("x").Kind(), Removed("x").Kind())
}

func TestResultKindStringPanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() {
		_ = ResultKind(42).String()
	})
}

func TestSetupResultLogValue(t *testing.T) {
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("setup", slog.Any("result", Removed("wrong board")))

	out := buf.String()
	require.Contains(t, out, "result.kind=removed")
	require.Contains(t, out, `result.reason="wrong board"`)
	require.NotContains(t, out, "result.ok")
}

func TestEntryStateRecoverable(t *testing.T) {
	for _, tt := range []struct {
		state EntryState
		want  bool
	}{
		{state: EntryStateNotLoaded, want: true},
		{state: EntryStateSetupRetry, want: true},
		{state: EntryStateSetupError, want: true},
		{state: EntryStateLoaded, want: false},
		{state: EntryStateFailedUnload, want: false},
		{state: EntryStateRemoved, want: false},
	} {
		t.Run(tt.state.String(), func(t *testing.T) {
			require.Equal(t, tt.want, tt.state.Recoverable())
		})
	}
}

func TestEntryString(t *testing.T) {
	e := &Entry{ID: "abc", Domain: "ios", Title: "Home Assistant iOS"}

	require.Equal(t, "Home Assistant iOS (ios/abc)", e.String())
}
