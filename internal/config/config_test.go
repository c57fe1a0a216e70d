package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "harrowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	path := writeTemp(t, `
hostname: "irc.test.org"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "irc.test.org", cfg.Hostname)
	require.Equal(t, "0.0.0.0:6667", cfg.ListenAddress)
	require.Equal(t, 9, cfg.MaxNickLength)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeTemp(t, `
listen-address: "127.0.0.1:6697"
hostname: "irc.test.org"
ping-interval: 90s
dead-time: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6697", cfg.ListenAddress)
	require.Equal(t, 90_000_000_000, int(cfg.PingInterval))
}

func TestLoadRejectsBlankHostname(t *testing.T) {
	path := writeTemp(t, `
hostname: ""
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDeadTimeNotGreaterThanPingInterval(t *testing.T) {
	path := writeTemp(t, `
hostname: "irc.test.org"
ping-interval: 5m
dead-time: 5m
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
