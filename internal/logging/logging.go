// Package logging builds the service's leveled loggers.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-logger/glog"
)

// Level names accepted by New.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// ValidLevel reports whether name is one of Levels.
func ValidLevel(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range Levels {
		if l == name {
			return true
		}
	}
	return false
}

// New returns the root logger. Components get named children through
// GetLogger.
func New(name, level string) (*glog.BaseLogger, error) {
	lvl := glog.Info
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		lvl = glog.Trace
	case "debug":
		lvl = glog.Debug
	case "info":
	case "warn":
		lvl = glog.Warn
	case "error":
		lvl = glog.Error
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(lvl),
		glog.WithName(name),
	), nil
}

// Nop discards everything. Used when a component is built without a logger.
type Nop struct{}

var _ glog.Logger = Nop{}

func (Nop) Trace(string, ...any) {}
func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
func (Nop) Fatal(string, ...any) {}

func (n Nop) WithContext(context.Context) glog.Logger { return n }

// OrNop returns l, or Nop when l is nil.
func OrNop(l glog.Logger) glog.Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
