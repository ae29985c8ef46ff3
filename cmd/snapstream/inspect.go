package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kbukum/snapstream/errors"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/redis"
	"github.com/kbukum/snapstream/stream"
)

// ErrNoKeys is returned when a key filter meets a record without a key.
var ErrNoKeys = errors.New("can't filter without keys")

// record is what the inspect commands print.
type record struct {
	Key       string
	Value     any
	Offset    int64
	Timestamp time.Time
	meta      bool
}

func fromMessage(m kafka.Message) record {
	return record{Key: m.Key, Value: m.Value, Offset: m.Offset, Timestamp: m.Timestamp, meta: true}
}

func fromEntry(e redis.Entry) record {
	return record{Key: e.Key, Value: e.Value}
}

// inspector filters records by key and value regex and projects columns.
type inspector struct {
	key     *regexp.Regexp
	val     *regexp.Regexp
	columns []string
}

func newInspector(keyExpr, valExpr, columns string) (*inspector, error) {
	in := &inspector{}
	var err error
	if keyExpr != "" {
		if in.key, err = regexp.Compile(keyExpr); err != nil {
			return nil, apperrors.InvalidInput("key-filter", err.Error())
		}
	}
	if valExpr != "" {
		if in.val, err = regexp.Compile(valExpr); err != nil {
			return nil, apperrors.InvalidInput("val-filter", err.Error())
		}
	}
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			in.columns = append(in.columns, c)
		}
	}
	return in, nil
}

// match reports whether r passes both filters.
func (in *inspector) match(r record) (bool, error) {
	if in.key != nil {
		if r.Key == "" {
			return false, ErrNoKeys
		}
		if !in.key.MatchString(r.Key) {
			return false, nil
		}
	}
	if in.val != nil && !in.val.MatchString(formatValue(r.Value)) {
		return false, nil
	}
	return true, nil
}

func (in *inspector) inspect(r record) (record, bool, error) {
	ok, err := in.match(r)
	if err != nil || !ok {
		return record{}, false, err
	}
	if len(in.columns) > 0 {
		m, err := asMap(r.Value)
		if err != nil {
			return record{}, false, err
		}
		projected := make(map[string]any, len(in.columns))
		for _, c := range in.columns {
			if v, ok := m[c]; ok {
				projected[c] = v
			}
		}
		r.Value = projected
	}
	return r, true, nil
}

func (in *inspector) messages() stream.Handler[kafka.Message, record] {
	return stream.MapOptional(func(_ context.Context, m kafka.Message) (record, bool, error) {
		return in.inspect(fromMessage(m))
	})
}

func (in *inspector) entries() stream.Handler[redis.Entry, record] {
	return stream.MapOptional(func(_ context.Context, e redis.Entry) (record, bool, error) {
		return in.inspect(fromEntry(e))
	})
}

// asMap returns v as a map, decoding JSON bytes when needed.
func asMap(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(t, &m); err == nil {
			return m, nil
		}
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil {
			return m, nil
		}
	}
	return nil, apperrors.InvalidInput("columns", fmt.Sprintf("columns could not be extracted from %T", v))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// printer is the sink of the inspect commands.
type printer struct {
	w  io.Writer
	mu sync.Mutex
}

func (p *printer) Send(_ context.Context, r record) error {
	var b strings.Builder
	b.WriteString("\n")
	if r.meta {
		ts := ""
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		fmt.Fprintf(&b, ">>> timestamp: %s\n>>> offset: %d\n", ts, r.Offset)
	}
	fmt.Fprintf(&b, ">>> key: %s\n%s\n", r.Key, formatValue(r.Value))

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.w, b.String())
	return err
}
