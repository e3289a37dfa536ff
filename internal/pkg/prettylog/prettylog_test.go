package prettylog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var entryTime = time.Date(2026, 3, 15, 4, 30, 0, 0, time.UTC)

func encode(t *testing.T, enc zapcore.Encoder, entry zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(entry, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestEncodeEntryPlainLine(t *testing.T) {
	enc := NewEncoder(false)
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       entryTime,
		LoggerName: "dispatch",
		Message:    "delivered",
	}

	line := encode(t, enc, entry,
		zap.String("url", "https://hooks.example/a"),
		zap.Int("status", 200),
	)

	assert.Equal(t, "2026-03-15 04:30:00 ℹ [dispatch] delivered url=https://hooks.example/a status=200\n", line)
}

func TestEncodeEntryQuotesAwkwardValues(t *testing.T) {
	enc := NewEncoder(false)
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Time: entryTime, Message: "saved"}

	line := encode(t, enc, entry, zap.String("title", "customer survey"), zap.String("note", ""))

	assert.Contains(t, line, `title="customer survey"`)
	assert.Contains(t, line, `note=""`)
}

func TestEncodeEntryHintSelectsIcon(t *testing.T) {
	enc := NewEncoder(false)
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Time: entryTime, Message: "server listening"}

	line := encode(t, enc, entry, ReadyField())

	assert.Contains(t, line, "✔ server listening")
	assert.NotContains(t, line, HintKey)
}

func TestEncodeEntryErrorBadge(t *testing.T) {
	enc := NewEncoder(false)
	entry := zapcore.Entry{Level: zapcore.ErrorLevel, Time: entryTime, Message: "delivery failed"}

	line := encode(t, enc, entry)

	assert.True(t, len(line) > 0 && line[0] == '\n')
	assert.Contains(t, line, " ERROR ")
	assert.Contains(t, line, "delivery failed")
}

func TestEncodeEntryColor(t *testing.T) {
	enc := NewEncoder(true)
	entry := zapcore.Entry{Level: zapcore.WarnLevel, Time: entryTime, Message: "slow endpoint"}

	line := encode(t, enc, entry)

	assert.Contains(t, line, ansiYellow)
	assert.Contains(t, line, ansiReset)
}

func TestCloneKeepsFieldsSeparate(t *testing.T) {
	base := NewEncoder(false)
	base.AddString("survey", "42")

	clone := base.Clone()
	clone.AddString("respond", "7")

	entry := zapcore.Entry{Level: zapcore.InfoLevel, Time: entryTime, Message: "ok"}

	withBoth := encode(t, clone, entry)
	assert.Contains(t, withBoth, "survey=42")
	assert.Contains(t, withBoth, "respond=7")

	original := encode(t, base, entry)
	assert.Contains(t, original, "survey=42")
	assert.NotContains(t, original, "respond=7")
}

func TestEncodeEntryDelta(t *testing.T) {
	enc := NewEncoder(false)

	first := zapcore.Entry{Level: zapcore.InfoLevel, Time: entryTime, Message: "one"}
	encode(t, enc, first)

	second := zapcore.Entry{Level: zapcore.InfoLevel, Time: entryTime.Add(40 * time.Millisecond), Message: "two"}
	line := encode(t, enc, second)

	assert.Contains(t, line, "+40ms")

	// Re-encoding the same entry, as the file core does, adds no delta.
	again := encode(t, enc, second)
	assert.NotContains(t, again, "+40ms")
}

func TestNeedsQuote(t *testing.T) {
	assert.True(t, needsQuote(""))
	assert.True(t, needsQuote("a b"))
	assert.True(t, needsQuote("a=b"))
	assert.True(t, needsQuote("line\nbreak"))
	assert.False(t, needsQuote("plain-value_1"))
	assert.False(t, needsQuote("https://hooks.example/path"))
}
