// Package prettylog provides a zap encoder that renders entries in a
// compact consola-like line format, used for both terminal output and
// the daily stdout capture files.
package prettylog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	ansiReset   = "\033[0m"
	ansiBlack   = "\033[30m"
	ansiRed     = "\033[31m"
	ansiGreen   = "\033[32m"
	ansiYellow  = "\033[33m"
	ansiMagenta = "\033[35m"
	ansiCyan    = "\033[36m"
	ansiGray    = "\033[90m"
	ansiBgRed   = "\033[41m"
)

const (
	iconDebug = "⚙"
	iconInfo  = "ℹ"
	iconWarn  = "⚠"
	iconError = "✖"
	iconOK    = "✔"
	iconStart = "◐"
)

// HintKey marks a field that selects the display icon instead of being
// printed as a key=value pair.
const HintKey = "_pl"

const (
	HintSuccess = "success"
	HintReady   = "ready"
	HintStart   = "start"
)

// SuccessField hints the encoder to render the entry with the success icon.
func SuccessField() zapcore.Field {
	return zapcore.Field{Key: HintKey, Type: zapcore.StringType, String: HintSuccess}
}

// ReadyField hints the encoder to render the entry with the ready icon.
func ReadyField() zapcore.Field {
	return zapcore.Field{Key: HintKey, Type: zapcore.StringType, String: HintReady}
}

// StartField hints the encoder to render the entry with the start icon.
func StartField() zapcore.Field {
	return zapcore.Field{Key: HintKey, Type: zapcore.StringType, String: HintStart}
}

// ShouldColor reports whether ANSI colors should be emitted, honoring
// the NO_COLOR convention.
func ShouldColor() bool {
	return os.Getenv("NO_COLOR") == ""
}

var bufPool = buffer.NewPool()

// Both stdout and file cores encode the same entry, so the delta is
// keyed on the entry timestamp rather than the encode time. A repeated
// stamp means a re-encode of the same entry and reports no delta.
var lastEntryMs atomic.Int64

func deltaMs(ts time.Time) int64 {
	now := ts.UnixMilli()
	prev := lastEntryMs.Swap(now)
	if prev <= 0 || prev == now {
		return 0
	}
	return now - prev
}

// Encoder is a zapcore.Encoder producing one human-readable line per
// entry. Structured fields are flattened to key=value pairs at the end
// of the line.
type Encoder struct {
	*fieldCollector
	color bool
}

// NewEncoder creates a pretty line encoder. color enables ANSI output.
func NewEncoder(color bool) zapcore.Encoder {
	return &Encoder{fieldCollector: &fieldCollector{}, color: color}
}

func (e *Encoder) Clone() zapcore.Encoder {
	return &Encoder{fieldCollector: e.fieldCollector.clone(), color: e.color}
}

func (e *Encoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	flat := &fieldCollector{fields: make([]field, 0, len(e.fields)+len(fields))}
	flat.fields = append(flat.fields, e.fields...)
	for _, f := range fields {
		f.AddTo(flat)
	}

	hint := ""
	kvs := flat.fields[:0]
	for _, kv := range flat.fields {
		if kv.key == HintKey {
			hint = kv.val
			continue
		}
		kvs = append(kvs, kv)
	}

	buf := bufPool.Get()
	badge := entry.Level >= zapcore.ErrorLevel
	if badge {
		buf.AppendByte('\n')
	}

	e.paint(buf, ansiGray, entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendByte(' ')

	if badge {
		if e.color {
			buf.AppendString(ansiBgRed + ansiBlack)
			buf.AppendString(" " + strings.ToUpper(entry.Level.String()) + " ")
			buf.AppendString(ansiReset)
		} else {
			buf.AppendString(" " + strings.ToUpper(entry.Level.String()) + " ")
		}
	} else {
		icon, tint := resolveIcon(entry.Level, hint)
		e.paint(buf, tint, icon)
	}
	buf.AppendByte(' ')

	if entry.LoggerName != "" {
		e.paint(buf, ansiYellow, "["+entry.LoggerName+"]")
		buf.AppendByte(' ')
	}

	buf.AppendString(entry.Message)

	for _, kv := range kvs {
		buf.AppendByte(' ')
		buf.AppendString(kv.key)
		buf.AppendByte('=')
		if needsQuote(kv.val) {
			buf.AppendString(strconv.Quote(kv.val))
		} else {
			buf.AppendString(kv.val)
		}
	}

	if delta := deltaMs(entry.Time); delta > 0 {
		e.paint(buf, ansiYellow, fmt.Sprintf(" +%dms", delta))
	}

	if entry.Stack != "" {
		buf.AppendByte('\n')
		e.paint(buf, ansiGray, entry.Stack)
	}

	if badge {
		buf.AppendByte('\n')
	}
	buf.AppendByte('\n')
	return buf, nil
}

func (e *Encoder) paint(buf *buffer.Buffer, tint, text string) {
	if e.color && tint != "" {
		buf.AppendString(tint)
		buf.AppendString(text)
		buf.AppendString(ansiReset)
		return
	}
	buf.AppendString(text)
}

func resolveIcon(level zapcore.Level, hint string) (icon, tint string) {
	switch hint {
	case HintSuccess, HintReady:
		return iconOK, ansiGreen
	case HintStart:
		return iconStart, ansiMagenta
	}
	switch level {
	case zapcore.DebugLevel:
		return iconDebug, ansiGray
	case zapcore.WarnLevel:
		return iconWarn, ansiYellow
	case zapcore.ErrorLevel, zapcore.FatalLevel, zapcore.DPanicLevel, zapcore.PanicLevel:
		return iconError, ansiRed
	default:
		return iconInfo, ansiCyan
	}
}

func needsQuote(s string) bool {
	return s == "" || strings.ContainsAny(s, " \"=\n\r\t")
}
