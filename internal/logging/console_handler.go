package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one human readable line per record:
//
//	2024-05-01T10:00:00Z INFO  [run 1a2b3c4d · reconcile] oracle: message key=value
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     slog.Leveler
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&fields, nil, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&fields, h.groups, attr)
		return true
	})

	var component, runID, stage string
	rest := fields[:0]
	for _, field := range fields {
		switch field.key {
		case FieldComponent:
			component = attrString(field.value)
		case FieldRunID:
			runID = attrString(field.value)
		case FieldStage:
			stage = attrString(field.value)
		default:
			rest = append(rest, field)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(formatTimestamp(ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if subject := composeSubject(runID, stage); subject != "" {
		buf.WriteString(" [")
		buf.WriteString(subject)
		buf.WriteByte(']')
	}
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" (")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(')')
		}
	}
	for _, field := range dedupeByKey(rest) {
		buf.WriteByte(' ')
		buf.WriteString(field.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(field.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		if len(h.groups) > 0 {
			attr = slog.Group(strings.Join(h.groups, "."), attr)
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		addSource: h.addSource,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
	}
}

func composeSubject(runID, stage string) string {
	runID = strings.TrimSpace(runID)
	stage = strings.TrimSpace(stage)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	switch {
	case runID != "" && stage != "":
		return "run " + runID + " · " + stage
	case runID != "":
		return "run " + runID
	default:
		return stage
	}
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeByKey keeps the last value for repeated keys, in first-seen order.
func dedupeByKey(fields []kv) []kv {
	index := make(map[string]int, len(fields))
	out := make([]kv, 0, len(fields))
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		if pos, ok := index[field.key]; ok {
			out[pos] = field
			continue
		}
		index[field.key] = len(out)
		out = append(out, field)
	}
	return out
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = append(append([]string(nil), prefix...), attr.Key)
		}
		flattenAttrs(dst, next, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}
