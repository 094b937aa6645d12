package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterSingleLine(t *testing.T) {
	var out bytes.Buffer
	l := newLogger(&out, logrus.DebugLevel)

	l.WithField("page", 3).WithField("frame", 1).Debug("evicted")

	line := out.String()
	assert.Contains(t, line, "[DEBU]")
	assert.Contains(t, line, "evicted frame=1 page=3")
	assert.Contains(t, line, "logger_test.go")
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("\n")))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("bogus"))
}

func TestInitLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "heapcache.log")
	defer func() {
		Logger.SetOutput(os.Stderr)
		Logger.SetLevel(logrus.InfoLevel)
	}()

	require.NoError(t, InitLogger(LogConfig{LogPath: logPath, LogLevel: "warn"}))
	assert.Equal(t, logrus.WarnLevel, Logger.GetLevel())

	WithComponent("test").Warn("hello file")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file component=test")
}
