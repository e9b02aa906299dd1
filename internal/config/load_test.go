package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("in start directory", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		want := writeConfig(t, dir, "")

		got, err := FindConfigFile(dir)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("walks up to parent", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		want := writeConfig(t, root, "")
		nested := filepath.Join(root, "a", "b", "c")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		got, err := FindConfigFile(nested)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("not found returns empty string", func(t *testing.T) {
		t.Parallel()
		got, err := FindConfigFile(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	t.Run("full config", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), `
[fix]
max_retries = 5
initial_temperature = 0.2
temperature_increment = 0.2

[llm]
model = "gpt-4o"
base_url = "http://localhost:11434/v1"
api_key_env = "MY_KEY"

[pytest]
python = "python3"
timeout_seconds = 120

[git]
branch_template = "fix/{date}"
base_branch = "develop"
create_pr = true
`)

		cfg, _, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Fix.MaxRetries)
		assert.InDelta(t, 0.2, cfg.Fix.InitialTemperature, 1e-9)
		assert.Equal(t, "gpt-4o", cfg.LLM.Model)
		assert.Equal(t, "MY_KEY", cfg.LLM.APIKeyEnv)
		assert.Equal(t, "python3", cfg.Pytest.Python)
		assert.Equal(t, 120, cfg.Pytest.TimeoutSeconds)
		assert.Equal(t, "develop", cfg.Git.BaseBranch)
		assert.True(t, cfg.Git.CreatePR)
	})

	t.Run("invalid toml", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), "[fix\nmax_retries = ")
		_, _, err := LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, _, err := LoadFromFile(filepath.Join(t.TempDir(), ConfigFileName))
		assert.Error(t, err)
	})

	t.Run("unknown keys are reported in metadata", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, t.TempDir(), `
[fix]
max_retries = 3
retires = 9
`)
		_, md, err := LoadFromFile(path)
		require.NoError(t, err)
		require.Len(t, md.Undecoded(), 1)
		assert.Equal(t, "fix.retires", md.Undecoded()[0].String())
	})
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	cfg := NewDefaults()
	assert.Equal(t, 3, cfg.Fix.MaxRetries)
	assert.InDelta(t, 0.4, cfg.Fix.InitialTemperature, 1e-9)
	assert.InDelta(t, 0.1, cfg.Fix.TemperatureIncrement, 1e-9)
	assert.False(t, cfg.Fix.ForceSuccess)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, "python", cfg.Pytest.Python)
	assert.Equal(t, 300, cfg.Pytest.TimeoutSeconds)
	assert.Equal(t, "testmend/fix-{date}", cfg.Git.BranchTemplate)
	assert.Equal(t, "main", cfg.Git.BaseBranch)

	vr := Validate(cfg, nil)
	assert.False(t, vr.HasErrors(), "defaults must validate cleanly")
}

func TestWriteStarterConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteStarterConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), path)

	cfg, md, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, md.Undecoded(), "starter config must not carry unknown keys")
	assert.False(t, Validate(cfg, &md).HasErrors())

	_, err = WriteStarterConfig(dir)
	assert.Error(t, err, "must refuse to overwrite an existing config")
}
