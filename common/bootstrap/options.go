package bootstrap

import (
	"github.com/lyzr/flowr/common/config"
	"github.com/lyzr/flowr/common/db"
	"github.com/lyzr/flowr/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipDB        bool
	skipTrace     bool
	skipTelemetry bool
	tracePostgres bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	dbInitHook    func(*db.DB) error
}

// WithoutDB skips database initialization
func WithoutDB() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithoutTrace skips job-trace store initialization (cmd/flowc and other
// compile-only tools never dispatch jobs, so they never need one).
func WithoutTrace() Option {
	return func(o *options) {
		o.skipTrace = true
	}
}

// WithTracePostgres makes the job-trace store a cas.PostgresStore instead
// of the Redis one, for runs that want traces to survive past the process
// — only takes effect when WithoutDB and WithoutTrace are both absent. The
// Redis connection is still opened and pinged.
func WithTracePostgres() Option {
	return func(o *options) {
		o.tracePostgres = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithDBInitHook runs a custom function after DB initialization
// Useful for running migrations, seeding data, etc.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{
		skipDB:        false,
		skipTrace:     false,
		skipTelemetry: false,
	}
}
