package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestParseKey(t *testing.T) {
	envs := DefaultEnvironments()

	k, err := ParseKey("PRO_NYC_V8", envs)
	require.NoError(t, err)
	assert.Equal(t, Key{Env: EnvPRO, Location: "NYC", Version: "V8"}, k)
	assert.Equal(t, "PRO_NYC_V8", k.String())

	_, err = ParseKey("QA_NYC_V8", envs)
	assert.True(t, errors.Is(err, ErrUnknownEnvironment))

	_, err = ParseKey("PRO_NYC", envs)
	assert.True(t, errors.Is(err, ErrInvalidKey))

	_, err = ParseKey("PRO_nyc_V8", envs)
	assert.True(t, errors.Is(err, ErrInvalidKey))

	k, err = ParseKey("QA_NYC_V8", envs.With("qa"))
	require.NoError(t, err)
	assert.Equal(t, Environment("QA"), k.Env)
}

func TestLoad_YAMLThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
workers: 2
filter:
  include: ["PRO_", " "]
connections:
  - key: PRO_NYC_V8
    name: New York
    host: nyc.db
    service_name: ORCL
    user: app
    password: secret
  - key: PRO_LON_V7
    driver: postgresql
    host: lon.db
    service_name: app
    user: reader
`)

	cfg, err := Load(LoadOptions{
		Path: path,
		Environ: []string{
			"DES_NYC_V8_HOST=des.db",
			"DES_NYC_V8_SERVICE_NAME=DEV",
			"DES_NYC_V8_PORT=1522",
			"DES_NYC_V8_USER=dev",
			"DES_NYC_V8_OWNER=APPOWNER",
			"TOTAL_RECORDS_LIMIT=50",
			"UNRELATED=1",
		},
	})
	require.NoError(t, err)

	require.Len(t, cfg.Connections, 3)
	assert.Equal(t, "PRO_NYC_V8", cfg.Connections[0].ID())
	assert.Equal(t, "PRO_LON_V7", cfg.Connections[1].ID())
	assert.Equal(t, "DES_NYC_V8", cfg.Connections[2].ID())

	assert.Equal(t, DriverOracle, cfg.Connections[0].Driver)
	assert.Equal(t, 1521, cfg.Connections[0].Port)
	assert.Equal(t, "app", cfg.Connections[0].Owner)
	assert.Equal(t, DriverPostgres, cfg.Connections[1].Driver)
	assert.Equal(t, 5432, cfg.Connections[1].Port)
	assert.Equal(t, 1522, cfg.Connections[2].Port)
	assert.Equal(t, "APPOWNER", cfg.Connections[2].Owner)

	assert.Equal(t, []string{"PRO_"}, cfg.Filter.Include)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 50, cfg.Limits.TotalRecordsLimit)
	assert.Equal(t, "|", cfg.CSVSeparator)
	assert.Equal(t, defaultExtractTimeout, cfg.ExtractTimeout)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "{}\n")
	envPath := writeFile(t, dir, ".env", `PRE_MAD_V6_HOST=mad.db
PRE_MAD_V6_SERVICE_NAME=PRE
SCHEMA_COMPARISON_EXCLUDE_PATTERNS=_LON_, _BER_
CSV_SEPARATOR=;
`)

	cfg, err := Load(LoadOptions{
		Path:    cfgPath,
		EnvFile: envPath,
		Environ: []string{"PRE_MAD_V6_HOST=override.db"},
		Overrides: Overrides{
			Workers:        8,
			ExtractTimeout: 5 * time.Second,
		},
	})
	require.NoError(t, err)
	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, "override.db", cfg.Connections[0].Host)
	assert.Equal(t, []string{"_LON_", "_BER_"}, cfg.Filter.Exclude)
	assert.Equal(t, ";", cfg.CSVSeparator)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.ExtractTimeout)

	cfg, err = Load(LoadOptions{
		Path:      cfgPath,
		EnvFile:   envPath,
		Overrides: Overrides{Filter: Filter{Regex: "PRE_.*"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Filter{Regex: "PRE_.*"}, cfg.Filter)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(LoadOptions{Path: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)

	dup := writeFile(t, dir, "dup.yaml", `
connections:
  - {key: PRO_NYC_V8, host: a, service_name: s}
  - {key: PRO_NYC_V8, host: b, service_name: s}
`)
	_, err = Load(LoadOptions{Path: dup})
	assert.ErrorContains(t, err, "more than once")

	both := writeFile(t, dir, "both.yaml", `
connections:
  - {key: PRO_NYC_V8, host: a, service_name: s}
`)
	_, err = Load(LoadOptions{Path: both, Environ: []string{"PRO_NYC_V8_HOST=x", "PRO_NYC_V8_SERVICE_NAME=s"}})
	assert.ErrorContains(t, err, "both")

	badEnv := writeFile(t, dir, "badenv.yaml", `
connections:
  - {key: UAT_NYC_V8, host: a, service_name: s}
`)
	_, err = Load(LoadOptions{Path: badEnv})
	assert.True(t, errors.Is(err, ErrUnknownEnvironment))

	noHost := writeFile(t, dir, "nohost.yaml", `
connections:
  - {key: PRO_NYC_V8, service_name: s}
`)
	_, err = Load(LoadOptions{Path: noHost})
	assert.ErrorContains(t, err, "host is required")

	_, err = Load(LoadOptions{Path: noHost, Environ: []string{"TOTAL_RECORDS_LIMIT=lots"}})
	assert.ErrorContains(t, err, "TOTAL_RECORDS_LIMIT")
}

type stubPasswords map[string]string

func (s stubPasswords) Password(id string) (string, bool, error) {
	pw, ok := s[id]
	return pw, ok, nil
}

func TestLoad_PasswordSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
connections:
  - {key: PRO_NYC_V8, host: a, service_name: s, user: u}
  - {key: PRO_LON_V8, host: b, service_name: s, user: u, password: inline}
`)
	cfg, err := Load(LoadOptions{
		Path:      path,
		Passwords: stubPasswords{"PRO_NYC_V8": "stored", "PRO_LON_V8": "ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, "stored", cfg.Connections[0].Password)
	assert.Equal(t, "inline", cfg.Connections[1].Password)
}

func TestCredentialStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewCredentialStore(path, "passphrase")
	require.NoError(t, err)

	_, ok, err := store.Password("PRO_NYC_V8")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("PRO_NYC_V8", "app", "s3cret"))
	pw, ok, err := store.Password("PRO_NYC_V8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s3cret", pw)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	other, err := NewCredentialStore(path, "wrong")
	require.NoError(t, err)
	_, _, err = other.Password("PRO_NYC_V8")
	assert.Error(t, err)
}

func TestConnection_MaskedDSN(t *testing.T) {
	conn := Connection{Key: Key{Env: EnvPRO, Location: "NYC", Version: "V8"}, Driver: DriverOracle, Host: "db", Port: 1521, ServiceName: "ORCL", User: "app"}
	for _, pw := range []string{"pw", "p#w", "p@ss/word", "a:b@c"} {
		conn.Password = pw
		assert.Equal(t, "oracle://app@db:1521/ORCL", conn.MaskedDSN(), pw)
	}

	conn.User = ""
	assert.Equal(t, "oracle://db:1521/ORCL", conn.MaskedDSN())
	assert.Equal(t, "PRO_NYC_V8", conn.DisplayName())
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, DriverOracle, NormalizeDriver(""))
	assert.Equal(t, DriverOracle, NormalizeDriver("GODROR"))
	assert.Equal(t, DriverPostgres, NormalizeDriver("pgx"))
	assert.Equal(t, DriverMySQL, NormalizeDriver("MariaDB"))
	assert.False(t, IsSupportedDriver("mssql"))
}
