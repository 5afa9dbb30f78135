package logger

import (
	"context"
	"errors"
	"log"
	"runtime"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"taskapi/internal/correlationid"
)

var (
	// Plain and Sugar start as no-ops so packages can log before New is
	// called (tests mostly).
	Plain        = zap.NewNop()
	Sugar        = &WrappedLogger{Plain.Sugar()}
	Recorded     *observer.ObservedLogs
	undoLogger   = func() {}
	undoMaxProcs = func() {}
)

const (
	serviceNameKey = "servicename"
)

// so we dont have to import zap everywhere
type Option = zap.Option

type WrappedLogger struct {
	*zap.SugaredLogger
}

// Resource is where and how New writes: stderr as JSON unless changed.
type Resource struct {
	console  bool
	filename string
}

type ResourceOption func(*Resource)

// WithFile writes to filename instead of stderr.
func WithFile(filename string) ResourceOption {
	return func(r *Resource) {
		r.filename = filename
	}
}

// WithConsole uses zap's human readable console encoding.
func WithConsole() ResourceOption {
	return func(r *Resource) {
		r.console = true
	}
}

// New creates 2 loggers (plain and sugared) as global variables according
// to the desired loglevel ("DEBUG", "NOOP", "TEST", default is "INFO").
// Log output from the standard library logger is redirected to the INFO
// level of these loggers.
func New(level string, opts ...ResourceOption) {
	r := &Resource{}
	for _, opt := range opts {
		opt(r)
	}

	var cfg zap.Config
	switch strings.ToUpper(level) {
	case NoopLevel:
		Plain = zap.NewNop()
		finish()
		return
	case DebugLevel, TestLevel:
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	if r.filename != "" {
		cfg.OutputPaths = []string{r.filename}
	}
	if r.console {
		cfg.Encoding = "console"
	}

	plain, err := cfg.Build()
	if err != nil {
		log.Panicf("cannot initialise zap logger: %v", err)
	}

	if strings.ToUpper(level) == TestLevel {
		core, recorded := observer.New(zapcore.DebugLevel)
		plain = plain.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
			return core
		}))
		Recorded = recorded
	}

	Plain = plain
	finish()
}

func finish() {
	undoLogger = zap.RedirectStdLog(Plain)
	Sugar = &WrappedLogger{Plain.Sugar()}

	Sugar.Debugf("Go version %s", runtime.Version())

	// Set GOMAXPROCS from the cgroup cpu quota so the gc does not stall on
	// cores the container does not have.
	var err error
	undoMaxProcs, err = maxprocs.Set(maxprocs.Logger(Sugar.Debugf))
	if err != nil {
		Sugar.Infof("Error for automaxprocs: %v", err)
	}
	Sugar.Debugf("Cores allocation GOMAXPROCS %v", runtime.GOMAXPROCS(-1))
}

// OnExit should be deferred immediately after calling New.
func OnExit() {
	_ = Sugar.Sync()
	_ = Plain.Sync()
	undoMaxProcs()
	undoLogger()
	Recorded = nil
}

// FromContext adds the request correlation id, if any, to a child logger.
func (wl *WrappedLogger) FromContext(ctx context.Context) *WrappedLogger {
	id := correlationid.FromContext(ctx)
	if id == "" {
		return wl
	}
	return wl.WithIndex(correlationid.Key, id)
}

func (wl *WrappedLogger) WithServiceName(servicename string) *WrappedLogger {
	return wl.WithIndex(serviceNameKey, strings.ToLower(servicename))
}

func (wl *WrappedLogger) WithIndex(key, value string) *WrappedLogger {
	return &WrappedLogger{
		SugaredLogger: wl.With(zap.String(key, value)),
	}
}

// Close attempts to flush any buffered log entries.
func (wl *WrappedLogger) Close() {
	err := wl.Sync()

	// This is usually 'sync /dev/stderr invalid argument' which is pointless
	if err != nil && !errors.Is(err, syscall.EINVAL) {
		wl.Debugf("Close: Failed to flush log: %v", err)
	}
}
