package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/registry"
	"github.com/kamusis/envdiff/internal/ui"
)

// executeRootCmd runs the cobra root command with the given args and captures stdout/stderr.
func executeRootCmd(t *testing.T, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	// Cobra commands are global singletons in this package; avoid parallel execution.
	resetFlags(rootCmd)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// resetFlags puts every flag back to its default so runs do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points HOME at a temp dir so the credential store and default
// config never touch the real ones.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(config.SecretEnvVar, "test-secret")
	return home
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  - key: PRO_NYC_V8
    name: New York
    host: nyc.db
    service_name: ORCL
    user: app
    password: topsecret
  - key: DES_NYC_V8
    host: des.db
    service_name: DEV
    user: dev
  - key: PRE_LON_V7
    driver: postgres
    host: lon.db
    service_name: app
    user: reader
`), 0644))
	return path
}

// TestCLI_HelpSmoke verifies that the CLI command tree is wired and can render help.
func TestCLI_HelpSmoke(t *testing.T) {
	stdout, _, err := executeRootCmd(t, "--help")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "envdiff [command]") {
		t.Fatalf("expected help output to include usage for envdiff, got: %q", stdout)
	}
}

// TestCLI_SubcommandHelpSmoke verifies key subcommands can render help without database access.
func TestCLI_SubcommandHelpSmoke(t *testing.T) {
	cases := []struct {
		name        string
		args        []string
		wantSubstrs []string
	}{
		{
			name:        "schema_help",
			args:        []string{"schema", "--help"},
			wantSubstrs: []string{"schema", "--ignore-column-order", "--include"},
		},
		{
			name:        "events_help",
			args:        []string{"events", "--help"},
			wantSubstrs: []string{"events", "--compare-formula", "--compare-order"},
		},
		{
			name:        "connections_help",
			args:        []string{"connections", "--help"},
			wantSubstrs: []string{"connections", "--check"},
		},
		{
			name:        "credentials_set_help",
			args:        []string{"credentials", "set", "--help"},
			wantSubstrs: []string{"ENV_LOC_VER", "--user"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			stdout, _, err := executeRootCmd(t, tc.args...)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			for _, sub := range tc.wantSubstrs {
				if !strings.Contains(strings.ToLower(stdout), strings.ToLower(sub)) {
					t.Fatalf("expected help output to contain %q, got: %q", sub, stdout)
				}
			}
		})
	}
}

func TestConnections_ListsSelection(t *testing.T) {
	home := isolate(t)
	cfg := writeConfig(t, home)

	stdout, _, err := executeRootCmd(t, "connections", "--config", cfg, "--plain", "--exclude", "_LON_")
	require.NoError(t, err)

	assert.Contains(t, stdout, "PRO_NYC_V8")
	assert.Contains(t, stdout, "New York")
	assert.Contains(t, stdout, "PRE_LON_V7")
	assert.NotContains(t, stdout, "topsecret")
	assert.Contains(t, stdout, "3 configured, 2 selected")

	nyc := strings.Index(stdout, "PRO_NYC_V8")
	des := strings.Index(stdout, "DES_NYC_V8")
	lon := strings.Index(stdout, "PRE_LON_V7")
	assert.True(t, nyc < des && des < lon, "declaration order kept")
}

func TestConnections_RejectsRegexWithPatterns(t *testing.T) {
	home := isolate(t)
	cfg := writeConfig(t, home)

	_, _, err := executeRootCmd(t, "connections", "--config", cfg, "--regex", "PRO_.*", "--include", "NYC")
	var ferr *registry.FilterConfigurationError
	assert.True(t, errors.As(err, &ferr), "got %v", err)
}

func TestSchema_NothingSelected(t *testing.T) {
	home := isolate(t)
	cfg := writeConfig(t, home)

	_, _, err := executeRootCmd(t, "schema", "--config", cfg, "--regex", "NOPE_.*", "--output-dir", filepath.Join(home, "docs"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connections selected")
}

func TestCredentialsSet_StoresPassword(t *testing.T) {
	if ui.IsInteractive() {
		t.Skip("stdin is a terminal")
	}
	home := isolate(t)
	cfg := writeConfig(t, home)

	rootCmd.SetIn(strings.NewReader("hunter2\n"))
	defer rootCmd.SetIn(nil)
	stdout, _, err := executeRootCmd(t, "credentials", "set", "DES_NYC_V8", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "DES_NYC_V8")

	store, err := config.NewCredentialStore("", "test-secret")
	require.NoError(t, err)
	pw, ok, err := store.Password("DES_NYC_V8")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hunter2", pw)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", creds.Credentials["DES_NYC_V8"].Username)
}

func TestCredentialsSet_UnknownEnvironment(t *testing.T) {
	home := isolate(t)
	cfg := writeConfig(t, home)

	_, _, err := executeRootCmd(t, "credentials", "set", "QA_NYC_V8", "--config", cfg)
	assert.ErrorIs(t, err, config.ErrUnknownEnvironment)
}

type mapPasswords map[string]string

func (m mapPasswords) Password(id string) (string, bool, error) {
	pw, ok := m[id]
	return pw, ok, nil
}

type failingPasswords struct{}

func (failingPasswords) Password(string) (string, bool, error) {
	return "", false, ui.ErrNotInteractive
}

func TestResolvePasswords_LeavesLoadedConnectionsAlone(t *testing.T) {
	mk := func(key, pw string) config.Connection {
		k, err := config.ParseKey(key, config.DefaultEnvironments())
		require.NoError(t, err)
		return config.Connection{Key: k, Password: pw}
	}
	loaded := []config.Connection{mk("PRO_NYC_V8", "kept"), mk("DES_NYC_V8", ""), mk("PRE_LON_V7", "")}

	got, err := resolvePasswords(loaded, mapPasswords{"PRO_NYC_V8": "ignored", "DES_NYC_V8": "typed"})
	require.NoError(t, err)

	assert.Equal(t, []string{"kept", "typed", ""}, []string{got[0].Password, got[1].Password, got[2].Password})
	assert.Equal(t, []string{"kept", "", ""}, []string{loaded[0].Password, loaded[1].Password, loaded[2].Password})

	_, err = resolvePasswords(loaded, failingPasswords{})
	assert.ErrorIs(t, err, ui.ErrNotInteractive)
	assert.ErrorContains(t, err, "DES_NYC_V8")
}
