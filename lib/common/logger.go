package common

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// objLogger implements the ILogger interface on top of a zap sugared logger.
// Level filtering is done here so that SetLevel keeps the dragonboat semantics.
type objLogger struct {
	name  string
	level atomic.Int32
	sugar *zap.SugaredLogger
}

func (l *objLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *objLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *objLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.sugar.Debugf(format, args...)
	}
}

func (l *objLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.sugar.Infof(format, args...)
	}
}

func (l *objLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.sugar.Warnf(format, args...)
	}
}

func (l *objLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.sugar.Errorf(format, args...)
	}
}

func (l *objLogger) Panicf(format string, args ...interface{}) {
	l.sugar.Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	baseOnce sync.Once
	base     *zap.Logger

	// defaultLevel is applied to every logger created by the factory
	defaultLevel atomic.Int32
)

func init() {
	defaultLevel.Store(int32(logger.INFO))
}

// baseLogger returns the shared zap logger all package loggers are derived from.
// The zap core itself logs everything, filtering happens per package logger.
func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = " | "
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			zapcore.DebugLevel,
		)
		base = zap.New(core)
	})
	return base
}

// CreateLogger implements the dragonboat logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	l := &objLogger{
		name:  pkgName,
		sugar: baseLogger().Named(pkgName).Sugar(),
	}
	l.level.Store(defaultLevel.Load())
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// Loggers lists the names of all loggers used by this module
var Loggers = []string{
	"datastore",
	"datastore/alloc",
	"db/badger",
	"lockmgr",
	"txn",
	"cmd",
}

var factoryOnce sync.Once

// InitLoggers installs the zap backed factory and sets the level of all known loggers.
// It may be called more than once, the factory is only installed the first time.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	defaultLevel.Store(int32(lvl))

	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range Loggers {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
