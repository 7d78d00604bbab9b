package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fieldwatch-agent/internal/config"
	"fieldwatch-agent/internal/reload"
	"fieldwatch-agent/pkg/historystore"
)

const testConfig = `
app:
  name: "test-agent"
  version: "v1.0.0"
  log_level: "info"
  log_format: "json"

server:
  enabled: false

metrics:
  enabled: false

resource_monitor:
  enabled: false

reload:
  enabled: false

export:
  enabled: false
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew_LoadsAndValidatesConfig(t *testing.T) {
	configFile := writeTestConfig(t, testConfig)

	application, err := New(configFile)
	require.NoError(t, err)
	assert.NotNil(t, application)
	assert.Equal(t, "test-agent", application.config.App.Name)
	assert.Equal(t, "v1.0.0", application.config.App.Version)
	assert.NotNil(t, application.runtime)
}

func TestNew_InvalidConfigFails(t *testing.T) {
	configFile := writeTestConfig(t, "app:\n  log_level: not-a-level\n")

	application, err := New(configFile)
	assert.Error(t, err)
	assert.Nil(t, application)
}

func TestApplyAgentSettings_EnablesReloadedLocators(t *testing.T) {
	configFile := writeTestConfig(t, testConfig)
	application, err := New(configFile)
	require.NoError(t, err)

	application.applyAgentSettings(reload.AgentSettings{
		TrackedFields: []config.FieldLocatorConfig{{Class: "Foo", Field: "items"}},
	})

	assert.True(t, application.history.IsActive(historystore.FieldLocator{Class: "Foo", Field: "items"}))
}

func TestStartStop_NoGoroutineLeaks(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*Watcher).readEvents"),
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.*"),
	)

	configFile := writeTestConfig(t, testConfig)
	application, err := New(configFile)
	require.NoError(t, err)

	require.NoError(t, application.Start())
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, application.Stop())
}
