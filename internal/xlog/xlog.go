// Package xlog is a thin, glog-style leveled-logging facade over logrus,
// giving call sites the familiar xlog.Infof/xlog.Errorf/xlog.V(n) shape
// on top of a real ecosystem logger.
package xlog

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Level mirrors the glog notion of verbosity: 0=debug .. 4=fatal, matching
// the configured log_level values.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func init() {
	log.SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetLevel configures the minimum level that is actually emitted.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		log.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		log.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		log.SetLevel(logrus.WarnLevel)
	case LevelError:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.FatalLevel)
	}
}

// Configure wires logging to a directory/file combination, matching
// config.log_directory/log_file; falls back to stderr on error.
func Configure(dir, file string) error {
	if dir == "" && file == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(dir+string(os.PathSeparator)+file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.SetOutput(f)
	return nil
}

func Debugf(f string, a ...interface{}) { log.Debugf(f, a...) }
func Infof(f string, a ...interface{})  { log.Infof(f, a...) }
func Warnf(f string, a ...interface{})  { log.Warnf(f, a...) }
func Errorf(f string, a ...interface{}) { log.Errorf(f, a...) }
func Fatalf(f string, a ...interface{}) { log.Fatalf(f, a...) }

// V reports whether verbosity level n is enabled, glog-style, so call sites
// can write `if xlog.V(2) { xlog.Debugf(...) }` to skip formatting work.
func V(n int) bool {
	want := logrus.DebugLevel
	if n <= 0 {
		want = logrus.InfoLevel
	}
	return log.IsLevelEnabled(want)
}

// ParseLevel converts the numeric config.log_level (0..4) into a Level.
func ParseLevel(s string) Level {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 4 {
		return LevelInfo
	}
	return Level(n)
}
