package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerOptions struct {
	level  slog.Leveler
	out    *sink
	format logFormat
	order  []string
}

type field struct {
	key string
	val any
}

// handler renders records as ordered key=value or JSON lines. Attributes
// of nested groups are flattened into dotted keys.
type handler struct {
	opts   *handlerOptions
	pre    []field
	prefix string
}

func newHandler(opts handlerOptions) *handler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if opts.order == nil {
		opts.order = defaultKeyOrder
	}
	return &handler{opts: &opts}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return fmt.Errorf("logger: output not initialized")
	}
	rec := make(record, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = levelName(r.Level)
	if h.opts.format == formatJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}
	for _, f := range h.pre {
		rec[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, rec.put)
		return true
	})
	MetaFrom(ctx).each(rec.setDefault)
	rec.setDefault("event", r.Message)
	rec.setDefault("event", "unknown")
	rec.setDefault("component", "app")
	rec.normalize()

	var line []byte
	if h.opts.format == formatJSON {
		var err error
		if line, err = rec.json(h.opts.order); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.opts.order)
	}
	return h.opts.out.Write(append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.pre = append([]field(nil), h.pre...)
	for _, a := range attrs {
		flatten(h.prefix, a, func(k string, v any) {
			clone.pre = append(clone.pre, field{k, v})
		})
	}
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func flatten(prefix string, a slog.Attr, put func(string, any)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, put)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := plainValue(key, v); ok {
		put(k, val)
	}
}

// plainValue converts v to a JSON friendly value. Durations become integer
// milliseconds under a key ending in _ms.
func plainValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

type record map[string]any

func (r record) put(k string, v any) { r[k] = v }

// setDefault stores v unless k already holds a non-empty value.
func (r record) setDefault(k string, v any) {
	if s, ok := v.(string); ok && s == "" {
		return
	}
	if cur, ok := r[k]; ok && cur != "" && cur != nil {
		return
	}
	r[k] = v
}

func (r record) str(k string) string {
	if s, ok := r[k].(string); ok {
		return s
	}
	return ""
}

func (r record) normalize() {
	if s := strings.ToLower(r.str("status")); s != "" {
		r["status"] = s
	}
	if o := r.str("outcome"); o != "" && !outcomeValues[strings.ToLower(o)] {
		delete(r, "outcome")
	}
	for k, v := range r {
		if v == nil || v == "" {
			delete(r, k)
		}
	}
}

// keys returns the keys of r listed in order first, then the rest sorted.
func (r record) keys(order []string) []string {
	keys := make([]string, 0, len(r))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		if _, ok := r[k]; ok {
			keys = append(keys, k)
		}
	}
	rest := len(keys)
	for k := range r {
		if !listed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys[rest:])
	return keys
}

func (r record) json(order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys(order) {
		data, err := json.Marshal(r[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (r record) kv(order []string) []byte {
	var b strings.Builder
	for i, k := range r.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := fmt.Sprint(r[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return []byte(b.String())
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
