package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, debug bool) {
	t.Helper()
	content := "agent:\n  debug: " + map[bool]string{true: "true", false: "false"}[debug] + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReloader_DetectsFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	writeConfig(t, path, false)

	changes := make(chan AgentSettings, 4)
	r, err := New(path, logrus.New(), func(s AgentSettings) { changes <- s })
	require.NoError(t, err)
	r.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	writeConfig(t, path, true)

	select {
	case s := <-changes:
		require.True(t, s.Debug)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}
