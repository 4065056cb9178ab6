package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TempLogPath returns a timestamped log file path in the system temp directory.
func TempLogPath(prefix string, now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.log", prefix, ts))
}

// NewLogger builds a console logger writing to stderr and, if path is not empty, to that
// file as well. The file always receives debug output; stderr only when debug is set.
func NewLogger(path string, debug bool) (logger *zap.Logger, err error) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	stderrLevel := zapcore.InfoLevel
	if debug {
		stderrLevel = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), stderrLevel),
	}

	if path != "" {
		var f *os.File
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("util: open log file '%s': %w", path, err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), zapcore.DebugLevel))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return
}

func FlushLogger() error {
	return zap.L().Sync()
}

// LogPanic records a recovered panic value with its stack and flushes the log.
func LogPanic(err any) {
	zap.L().Error("panicked", zap.Any("panic", err), zap.ByteString("stack", debug.Stack()))
	_ = FlushLogger()
}
