package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "memory", cfg.Database.Driver)
	require.Equal(t, "openai", cfg.AI.Provider)
	require.Equal(t, 8000, cfg.Telephony.SampleRate)
	require.Equal(t, "en-US", cfg.Telephony.SourceLang)
	require.Equal(t, "en-US", cfg.Telephony.TargetLang)
}

func TestLoadTelephonyLanguages(t *testing.T) {
	path := writeConfig(t, "telephony:\n  enabled: true\n  vosk_server_url: ws://vosk:2700\n  source_lang: hi-IN\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "hi-IN", cfg.Telephony.SourceLang)
	// Target defaults to the source language when unset.
	require.Equal(t, "hi-IN", cfg.Telephony.TargetLang)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, "ai:\n  api_key: from-file\n")
	t.Setenv("AI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.AI.APIKey)
}

func TestLoadRejectsBadDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: sqlite\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown database driver")
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: postgres\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "database url required")
}

func TestLoadTelephonyRequiresVosk(t *testing.T) {
	path := writeConfig(t, "telephony:\n  enabled: true\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "vosk server url")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
