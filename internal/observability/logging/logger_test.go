package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seu-repo/parkflow/pkg/config"
)

func TestNew_WritesJSONAtConfiguredLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	logger, err := New("production", config.LoggingConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"kept"`)
	assert.Contains(t, lines[0], `"level":"warn"`)
	assert.Contains(t, lines[0], `"timestamp"`)
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, err := New("development", config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New("development", config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
