//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// xdgPath returns $env/acnedetect/elem..., using $HOME/fallback when env is
// unset and the working directory when there is no home either.
func xdgPath(env, fallback string, elem ...string) string {
	dir := os.Getenv(env)
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, fallback)
		} else {
			dir = "."
		}
	}
	return filepath.Join(append([]string{dir, appName}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configFilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

func apiKeyHint() string {
	return " or the secrets file " + secretsFilePath()
}

func newPlatformBackend() Backend {
	return openFileBackend(configFilePath())
}

// fileBackend keeps settings as one flat JSON object keyed by the dotted
// config key, e.g. {"server.port": 4000, "chat.temperature": 0.5}.
type fileBackend struct {
	path string
	data map[string]any
	// err is the load failure. Getters report it and setters refuse to
	// overwrite a file that could not be read.
	err error
}

func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		b.err = fmt.Errorf("reading config file: %w", err)
	default:
		if err := json.Unmarshal(raw, &b.data); err != nil {
			b.err = fmt.Errorf("parsing config file %s: %w", path, err)
		}
		if b.data == nil {
			b.data = make(map[string]any)
		}
	}
	return b
}

func (b *fileBackend) lookup(key string) (any, bool, error) {
	if b.err != nil {
		return nil, false, b.err
	}
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok, err := b.lookup(key)
	if !ok || err != nil {
		return "", ok, err
	}
	if s, isString := v.(string); isString {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok, err := b.lookup(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) || val < math.MinInt || val > math.MaxInt {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}

// GetFloat accepts numbers and numeric strings.
func (b *fileBackend) GetFloat(key string) (float64, bool, error) {
	v, ok, err := b.lookup(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	switch val := v.(type) {
	case float64:
		return val, true, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
}

func (b *fileBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *fileBackend) SetInt(key string, val int) error { return b.set(key, val) }

func (b *fileBackend) SetFloat(key string, val float64) error { return b.set(key, val) }

func (b *fileBackend) set(key string, val any) error {
	if b.err != nil {
		return fmt.Errorf("refusing to overwrite unreadable config: %w", b.err)
	}
	b.data[key] = val
	out, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writeFileAtomic(b.path, out)
}

// writeFileAtomic replaces path with data (mode 0600) through a temp file in
// the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
