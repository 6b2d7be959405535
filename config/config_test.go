package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
tools:
  base_url: http://tools.internal
  timeout: 30s
agent:
  max_workers: 8
  split_instructions: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("AGENT_MAX_WORKERS", "3")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c := loadConfig()

	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "http://tools.internal", c.Tools.BaseURL)
	assert.Equal(t, 30*time.Second, c.Tools.Timeout)
	assert.Equal(t, 3, c.Agent.MaxWorkers, "环境变量应覆盖配置文件")
	assert.True(t, c.Agent.SplitInstructions)
	assert.True(t, c.Agent.LocalFallback, "未配置时保留默认值")
	assert.Equal(t, "sk-test", c.LLM.APIKey)
}

func TestLoadConfig_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("AGENT_STEP_TIMEOUT", "soon")
	t.Setenv("AGENT_LOCAL_FALLBACK", "false")

	c := loadConfig()

	assert.Equal(t, Default().Agent.StepTimeout, c.Agent.StepTimeout)
	assert.False(t, c.Agent.LocalFallback)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	c := Default()
	c.Agent.MaxRetries = 2

	require.NoError(t, c.Save(path))

	t.Setenv("CONFIG_PATH", path)
	loaded := loadConfig()
	assert.Equal(t, 2, loaded.Agent.MaxRetries)
}
