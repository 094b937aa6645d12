package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before InitLogger runs
// (Info level, stderr) so packages can take entries from it at construction.
var Logger = newLogger(os.Stderr, logrus.InfoLevel)

type LogConfig struct {
	LogPath  string // empty: stderr only
	LogLevel string
}

// Formatter prints one line per entry:
// [15:04:05 MST 2006/01/02] [INFO] (file.go:func:line) message k=v ...
type Formatter struct {
	TimestampFormat string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] (%s) %s", timestamp, level, getCaller(), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

// getCaller walks past logrus and this package to the code that logged.
func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen/logrus") || strings.HasSuffix(file, "/logger/logger.go") {
			continue
		}
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), runtime.FuncForPC(pc).Name(), line)
	}
	return "unknown:unknown:0"
}

func ParseLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&Formatter{TimestampFormat: "15:04:05 MST 2006/01/02"})
	l.SetOutput(out)
	l.SetLevel(level)
	return l
}

// InitLogger reconfigures Logger in place, so entries taken from it earlier
// follow the new level and output.
func InitLogger(config LogConfig) error {
	Logger.SetLevel(ParseLogLevel(config.LogLevel))

	if config.LogPath == "" {
		Logger.SetOutput(os.Stderr)
		return nil
	}

	logFile, err := openLogFile(config.LogPath)
	if err != nil {
		Logger.SetOutput(os.Stderr)
		Logger.Warnf("Failed to open log file %s, fallback to stderr: %v", config.LogPath, err)
		return err
	}
	Logger.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return nil
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
}

// WithComponent returns an entry tagged with the component name.
func WithComponent(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
