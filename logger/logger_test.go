package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	Configure(l, &buf, Config{Level: "debug", Format: "json"})

	Component(l, "fetcher").WithField("query", "comedy").Debug("page fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "comedy", entry["query"])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigureInvalidLevelDefaultsToInfo(t *testing.T) {
	l := logrus.New()
	Configure(l, &bytes.Buffer{}, Config{Level: "loud"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestSetupCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	prev := logrus.StandardLogger().Out
	t.Cleanup(func() { logrus.SetOutput(prev) })

	closer, err := Setup(Config{Dir: dir, Level: "info"})
	require.NoError(t, err)
	logrus.Info("hello")
	require.NoError(t, closer.Close())

	_, err = os.Stat(filepath.Join(dir, "app.log"))
	assert.NoError(t, err)
}
