package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const appDir = "tresses"

// xdgPath resolves $env/tresses/name. When env is unset it uses
// ~/fallback, or the working directory if there is no home.
func xdgPath(env, fallback, name string) string {
	base := os.Getenv(env)
	if base == "" {
		base = "."
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, fallback)
		}
	}
	return filepath.Join(base, appDir, name)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"), "")
}

// ConfigFilePath is where `config set` writes.
func ConfigFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(ConfigFilePath())
}

// fileBackend stores config as a flat JSON object keyed by dotted names,
// e.g. {"server.port": 4100}. Numbers are kept as json.Number so integer
// values survive a round trip exactly.
type fileBackend struct {
	path string

	mu     sync.Mutex
	values map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path}
	values, err := readValues(path)
	if err != nil {
		slog.Warn("config: ignoring config file, using defaults", "path", path, "error", err)
	}
	b.values = values
	return b
}

// readValues returns an empty map for a missing file.
func readValues(path string) (map[string]any, error) {
	values := make(map[string]any)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return values, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return make(map[string]any), fmt.Errorf("parsing %s: %w", path, err)
	}
	if values == nil { // literal null
		values = make(map[string]any)
	}
	return values, nil
}

// writeValues replaces the file through a rename so readers never see a
// partial write.
func writeValues(path string, values map[string]any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (b *fileBackend) lookup(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

// update applies fn to the values and persists them. The in-memory state is
// only changed when the write succeeds.
func (b *fileBackend) update(fn func(values map[string]any)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := maps.Clone(b.values)
	fn(next)
	if err := writeValues(b.path, next); err != nil {
		return err
	}
	b.values = next
	return nil
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	var raw string
	switch val := v.(type) {
	case json.Number:
		raw = val.String()
	case string:
		raw = val
	case int:
		return val, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return i, true, nil
}

func (b *fileBackend) SetString(key, val string) error {
	return b.update(func(values map[string]any) { values[key] = val })
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.update(func(values map[string]any) { values[key] = val })
}

func (b *fileBackend) Delete(key string) error {
	return b.update(func(values map[string]any) { delete(values, key) })
}
