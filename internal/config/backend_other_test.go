//go:build !darwin

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

// isolate points the XDG dirs at fresh temp dirs and clears every env
// override so only the files under test are read.
func isolate(t *testing.T) (configHome, dataHome string) {
	t.Helper()
	configHome, dataHome = t.TempDir(), t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv(fallbackKeyEnv, "")
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	return configHome, dataHome
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("parsing %s: %v", path, err)
	}
	return m
}

func TestSetKeyThenLoadSettings(t *testing.T) {
	configHome, _ := isolate(t)

	for _, kv := range [][2]string{
		{"server.port", "5050"},
		{"chat.temperature", "0.3"},
		{"proxy.model", "gpt-4o"},
		{"server.session_idle_ttl", "30m"},
	} {
		if err := SetKey(kv[0], kv[1]); err != nil {
			t.Fatalf("SetKey(%s): %v", kv[0], err)
		}
	}

	cfg, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if cfg.Server.Port != 5050 || cfg.Chat.Temperature != 0.3 || cfg.Proxy.Model != "gpt-4o" {
		t.Errorf("cfg = %+v %+v %+v", cfg.Server, cfg.Chat, cfg.Proxy)
	}
	if cfg.Server.SessionIdleTTL != "30m" {
		t.Errorf("SessionIdleTTL = %q", cfg.Server.SessionIdleTTL)
	}

	path := filepath.Join(configHome, appName, "config.json")
	data := readJSON(t, path)
	if data["chat.temperature"] != 0.3 {
		t.Errorf("chat.temperature stored as %#v, want the number 0.3", data["chat.temperature"])
	}
	if data["server.port"] != float64(5050) {
		t.Errorf("server.port stored as %#v", data["server.port"])
	}
	if info, err := os.Stat(path); err != nil {
		t.Fatal(err)
	} else if info.Mode().Perm() != 0o600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSetAPIKeyThenLoad(t *testing.T) {
	_, dataHome := isolate(t)

	if _, err := Load(); !apperr.IsCode(err, apperr.CodeConfiguration) {
		t.Fatalf("Load without key err = %v, want CONFIGURATION", err)
	}

	if err := SetAPIKey("  sk-first  "); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if err := SetAPIKey("sk-second"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Proxy.OpenAIAPIKey != "sk-second" {
		t.Errorf("OpenAIAPIKey = %q, want sk-second", cfg.Proxy.OpenAIAPIKey)
	}

	path := filepath.Join(dataHome, appName, "secrets.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestKeychainSet_KeepsOtherEntries(t *testing.T) {
	isolate(t)

	if err := keychainSet("other", "token", "t1"); err != nil {
		t.Fatal(err)
	}
	if err := keychainSet(appName, keychainItem, "sk"); err != nil {
		t.Fatal(err)
	}

	got, err := keychainGet("other", "token")
	if err != nil || string(got) != "t1" {
		t.Errorf("keychainGet(other) = %q, %v", got, err)
	}
	if _, err := keychainGet(appName, "missing"); err == nil {
		t.Error("keychainGet of a missing account succeeded")
	}
}

func TestKeychainSet_CorruptFileUntouched(t *testing.T) {
	isolate(t)

	path := secretsFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := keychainSet(appName, keychainItem, "sk"); err == nil {
		t.Fatal("keychainSet over a corrupt file succeeded")
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "{not json" {
		t.Errorf("secrets file rewritten to %q", raw)
	}
}

func TestFileBackend_Values(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"port": 4000, "half": 2.5, "str_int": "42", "str_float": "0.7", "flag": true, "name": "x"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openFileBackend(path)

	if v, ok, err := b.GetInt("port"); err != nil || !ok || v != 4000 {
		t.Errorf("GetInt(port) = %d, %v, %v", v, ok, err)
	}
	if v, ok, err := b.GetInt("str_int"); err != nil || !ok || v != 42 {
		t.Errorf("GetInt(str_int) = %d, %v, %v", v, ok, err)
	}
	if _, ok, err := b.GetInt("half"); err == nil || !ok {
		t.Errorf("GetInt(half) ok=%v err=%v, want error", ok, err)
	}
	if _, _, err := b.GetInt("flag"); err == nil {
		t.Error("GetInt(flag) succeeded")
	}
	if v, ok, err := b.GetFloat("half"); err != nil || !ok || v != 2.5 {
		t.Errorf("GetFloat(half) = %v, %v, %v", v, ok, err)
	}
	if v, _, err := b.GetFloat("str_float"); err != nil || v != 0.7 {
		t.Errorf("GetFloat(str_float) = %v, %v", v, err)
	}
	if v, _, err := b.GetString("port"); err != nil || v != "4000" {
		t.Errorf("GetString(port) = %q, %v", v, err)
	}
	if _, ok, err := b.GetString("absent"); ok || err != nil {
		t.Errorf("GetString(absent) ok=%v err=%v", ok, err)
	}
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	b := openFileBackend(filepath.Join(t.TempDir(), "nested", "config.json"))

	if _, ok, err := b.GetString("proxy.model"); ok || err != nil {
		t.Errorf("GetString ok=%v err=%v, want absent", ok, err)
	}
	if err := b.SetInt("server.port", 4100); err != nil {
		t.Fatalf("SetInt creates parent dirs: %v", err)
	}
	if v, _, _ := openFileBackend(b.path).GetInt("server.port"); v != 4100 {
		t.Errorf("reopened server.port = %d", v)
	}
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := openFileBackend(path)

	if _, _, err := b.GetString("proxy.model"); err == nil {
		t.Error("GetString on corrupt file succeeded")
	}
	if _, err := loadSettings(b); !apperr.IsCode(err, apperr.CodeConfiguration) {
		t.Errorf("loadSettings err = %v, want CONFIGURATION", err)
	}
	if err := b.SetString("proxy.model", "gpt-4o"); err == nil {
		t.Error("SetString over corrupt file succeeded")
	}
	if raw, _ := os.ReadFile(path); string(raw) != "{" {
		t.Errorf("corrupt file rewritten to %q", raw)
	}
}
