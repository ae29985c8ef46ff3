package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	apperrors "github.com/kbukum/snapstream/errors"
)

// EntriesFileName is the name of the per-user entries file.
const EntriesFileName = ".snapstreamcfg"

// Entry types.
const (
	EntryTopic = "Topic"
	EntryCache = "Cache"
)

// DefaultBroker is written into newly created topic entries.
const DefaultBroker = "localhost:29091"

// Entry holds the connection settings of one topic or cache. Conf keys are
// the mapstructure keys of kafka.Config or redis.Config.
type Entry struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Prefix string         `json:"prefix,omitempty"`
	Conf   map[string]any `json:"conf"`
}

// ID returns the name of a topic entry or the prefix of a cache entry.
func (e Entry) ID() string {
	if e.Type == EntryCache {
		return e.Prefix
	}
	return e.Name
}

// Decode resolves $VAR references in Conf and decodes the result into out.
// Unknown keys are rejected.
func (e Entry) Decode(out any, secretsBase string) error {
	conf, err := ResolveVariables(e.Conf, secretsBase)
	if err != nil {
		return fmt.Errorf("%s %q: %w", e.Type, e.ID(), err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(conf); err != nil {
		return apperrors.Config(fmt.Sprintf("%s %q", e.Type, e.ID())).WithCause(err)
	}
	return nil
}

// DefaultEntry returns the entry created for an unknown topic or cache.
func DefaultEntry(typ, id string) Entry {
	switch typ {
	case EntryCache:
		return Entry{Type: EntryCache, Prefix: id, Conf: map[string]any{"addr": "localhost:6379"}}
	default:
		return Entry{Type: EntryTopic, Name: id, Conf: map[string]any{"brokers": []any{DefaultBroker}}}
	}
}

// Entries is the content of an entries file.
type Entries struct {
	path string
	mu   sync.Mutex
	list []Entry
}

// EntriesPath returns the entries file inside dir. A leading "~" is
// expanded to the home directory.
func EntriesPath(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Join(dir, EntriesFileName), nil
}

// LoadEntries reads the entries file at path. A missing file yields an empty
// list; anything but a JSON list of objects is a config error.
func LoadEntries(path string) (*Entries, error) {
	es := &Entries{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return es, nil
	}
	if err != nil {
		return nil, apperrors.Config(fmt.Sprintf("read %s", path)).WithCause(err)
	}
	if err := json.Unmarshal(data, &es.list); err != nil {
		return nil, apperrors.Config(fmt.Sprintf("expected %s to be a json list of entries", path)).WithCause(err)
	}
	return es, nil
}

// Path returns the file the entries are saved to.
func (es *Entries) Path() string { return es.path }

// List returns a copy of all entries.
func (es *Entries) List() []Entry {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]Entry(nil), es.list...)
}

// Find returns the entry of the given type and id.
func (es *Entries) Find(typ, id string) (Entry, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.find(typ, id)
}

func (es *Entries) find(typ, id string) (Entry, bool) {
	for _, e := range es.list {
		if e.Type == typ && e.ID() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Ensure returns the entry of the given type and id, appending and saving
// DefaultEntry when there is none. created reports whether the file was
// written.
func (es *Entries) Ensure(typ, id string) (entry Entry, created bool, err error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if e, ok := es.find(typ, id); ok {
		return e, false, nil
	}
	e := DefaultEntry(typ, id)
	es.list = append(es.list, e)
	if err := es.save(); err != nil {
		es.list = es.list[:len(es.list)-1]
		return Entry{}, false, err
	}
	return e, true, nil
}

// Save writes the entries back to their file.
func (es *Entries) Save() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.save()
}

func (es *Entries) save() error {
	list := es.list
	if list == nil {
		list = []Entry{}
	}
	data, err := json.MarshalIndent(list, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(es.path), 0o755); err != nil {
		return apperrors.Config(fmt.Sprintf("create %s", filepath.Dir(es.path))).WithCause(err)
	}
	if err := os.WriteFile(es.path, append(data, '\n'), 0o600); err != nil {
		return apperrors.Config(fmt.Sprintf("write %s", es.path)).WithCause(err)
	}
	return nil
}
