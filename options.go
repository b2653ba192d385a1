package trove

import (
	"log/slog"

	"github.com/trovedb/trove/persistence"
)

type options struct {
	logger      *Logger
	compression bool
	syncWrites  bool
}

// Option configures Store open behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := trove.NewJSONLogger(slog.LevelInfo)
//	store, _ := trove.Open(dir, trove.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSnapshotCompression enables zstd compression of index files.
// Compressed and uncompressed files are both accepted on open, so the
// setting can change between runs.
func WithSnapshotCompression(enabled bool) Option {
	return func(o *options) {
		o.compression = enabled
	}
}

// WithSyncWrites controls whether every append is persisted to disk
// before Add returns. Enabled by default; disable for bulk loads that
// checkpoint explicitly via Flush.
func WithSyncWrites(enabled bool) Option {
	return func(o *options) {
		o.syncWrites = enabled
	}
}

func (o *options) saveOptions() []func(*persistence.SaveOptions) {
	if !o.compression {
		return nil
	}
	return []func(*persistence.SaveOptions){persistence.WithCompression()}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:     NoopLogger(),
		syncWrites: true,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
