package log

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat_Fields(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)
	line := Format(ts, LevelWarn, CatDispatch, "no handler for kind", "kind", "totally-unknown")
	require.Equal(t, "2025-12-06T10:45:00 [WARN] [dispatch] no handler for kind kind=totally-unknown", line)
}

func TestFormat_OddFieldCount(t *testing.T) {
	ts := time.Date(2025, 12, 6, 10, 45, 0, 0, time.UTC)
	line := Format(ts, LevelInfo, CatState, "msg", "orphan")
	require.Contains(t, line, "orphan=<missing>")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("info"))
	require.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelDebug, ParseLevel("nonsense"))
}

func TestInitWriter_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	SetMinLevel(LevelWarn)
	Debug(CatState, "hidden")
	Warn(CatState, "shown", "agent_id", "a1")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[WARN] [state] shown agent_id=a1")
}

func TestNewListener_ReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	t.Cleanup(Reset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	ErrorErr(CatWire, "decode failed", nil)

	msg := listener.Listen()()
	event, ok := msg.(LogEvent)
	require.True(t, ok)
	require.Contains(t, event.Payload, "error=<nil>")
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	defaultLogger = nil
	require.NotPanics(t, func() {
		Info(CatConfig, "nothing installed")
	})
	require.Nil(t, NewListener(context.Background()))
}
