package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, file, nodeID string) {
	t.Helper()
	content := "url: amqp://localhost:5672\nnodeId: " + nodeID + "\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

func TestWatcher(t *testing.T) {
	t.Run("loads the initial configuration", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "busline.yaml")
		writeConfig(t, file, "node-1")

		w, err := NewWatcher(file, nil)
		require.NoError(t, err)
		defer w.Stop()

		assert.Equal(t, "node-1", w.Config().NodeID)
	})

	t.Run("missing file fails construction", func(t *testing.T) {
		_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		assert.Error(t, err)
	})

	t.Run("rewrite triggers reload and callback", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "busline.yaml")
		writeConfig(t, file, "node-1")

		w, err := NewWatcher(file, nil)
		require.NoError(t, err)
		defer w.Stop()

		changed := make(chan *Config, 1)
		w.OnChange(func(oldCfg, newCfg *Config) {
			changed <- newCfg
		})

		require.NoError(t, w.Start(context.Background()))

		writeConfig(t, file, "node-2")

		select {
		case newCfg := <-changed:
			assert.Equal(t, "node-2", newCfg.NodeID)
			assert.Equal(t, "node-2", w.Config().NodeID)
		case <-time.After(3 * time.Second):
			t.Fatal("configuration change was not observed")
		}
	})

	t.Run("invalid rewrite keeps the previous configuration", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "busline.yaml")
		writeConfig(t, file, "node-1")

		w, err := NewWatcher(file, nil)
		require.NoError(t, err)
		defer w.Stop()

		require.NoError(t, w.Start(context.Background()))

		// Valid YAML, but fails validation: node id removed.
		require.NoError(t, os.WriteFile(file, []byte("url: amqp://localhost:5672\n"), 0o644))

		// Give the watcher a moment to observe the event.
		time.Sleep(300 * time.Millisecond)

		assert.Equal(t, "node-1", w.Config().NodeID)
	})
}
