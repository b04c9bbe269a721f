package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "patterns.yaml", `
patterns:
  - |
    match = ssn
    ssn = digits "-" digits "-" digits
    digits = ~"\d+"
  - 'match = ~"(?i)confidential"'
dpi: 200
jobs: 4
languages: [eng, deu]
strict: true
output: redacted/
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Patterns, 2)
	assert.Contains(t, cfg.Patterns[0], "ssn =")
	assert.Equal(t, 200, cfg.DPI)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, []string{"eng", "deu"}, cfg.Languages)
	assert.True(t, cfg.StrictEnabled())
	assert.Equal(t, "redacted/", cfg.Output)
	assert.True(t, cfg.VerifyEnabled(), "verify defaults on when absent")
}

func TestLoadVerifyDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "patterns.yaml", "patterns: ['match = \"x\"']\nverify: false\nstrict: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.VerifyEnabled())
	assert.False(t, cfg.StrictEnabled())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, t.TempDir(), "bad.yaml", "patterns: [unterminated\n")
	_, err = Load(bad)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadEmptyPatterns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "patterns.yaml", "dpi: 300\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Patterns)
}

func TestFindExplicit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", "patterns: []\n")

	found, err := Find(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = Find(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestFindEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "env.yaml", "patterns: []\n")
	t.Setenv(EnvVar, path)
	t.Chdir(t.TempDir())

	found, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindCurrentDirectory(t *testing.T) {
	t.Setenv(EnvVar, "")
	dir := t.TempDir()
	writeFile(t, dir, Filename, "patterns: []\n")
	t.Chdir(dir)

	found, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, Filename, filepath.Base(found))
	_, err = os.Stat(found)
	assert.NoError(t, err)
}

func TestFindNothing(t *testing.T) {
	t.Setenv(EnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	found, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, found, "no config anywhere is not an error")
}

func TestCandidatesPrecedence(t *testing.T) {
	t.Setenv(EnvVar, "/tmp/override.yaml")

	cands := Candidates()
	require.NotEmpty(t, cands)
	assert.Equal(t, "/tmp/override.yaml", cands[0], "environment override comes first")
	assert.Equal(t, filepath.Join(siteDir, appDir, Filename), cands[len(cands)-1])
}
