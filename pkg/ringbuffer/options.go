package ringbuffer

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/prioring/metric"
)

// Allocator returns a byte slice of at least size bytes for the backing
// store, or an error when the memory cannot be provided. The slice does not
// need to be zeroed; Register clears it before committing.
type Allocator func(size int) ([]byte, error)

// HeapAllocator allocates the backing store on the Go heap.
func HeapAllocator(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Option configures a ring at registration time.
type Option func(*ringOptions)

type ringOptions struct {
	name      string
	logger    *slog.Logger
	allocator Allocator
	maxMemory int

	// metricsReg is optional; when set, ring statistics are also exported to Prometheus
	metricsReg *metric.MetricsRegistry
}

// WithName sets the ring name used in logs and as the metrics label.
func WithName(name string) Option {
	return func(o *ringOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMetrics exports ring counters and occupancy through registry, labelled
// with name. If registry is nil the option is ignored.
func WithMetrics(registry *metric.MetricsRegistry, name string) Option {
	return func(o *ringOptions) {
		if registry != nil {
			o.metricsReg = registry
			if name != "" {
				o.name = name
			}
		}
	}
}

// WithLogger sets the logger for lifecycle events. Push and Pop never log.
func WithLogger(logger *slog.Logger) Option {
	return func(o *ringOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAllocator replaces the backing store allocator.
func WithAllocator(alloc Allocator) Option {
	return func(o *ringOptions) {
		if alloc != nil {
			o.allocator = alloc
		}
	}
}

// WithMaxMemory bounds the backing store size in bytes. Registering a
// geometry that needs more fails with ErrAllocationFailed. Zero means no bound.
func WithMaxMemory(bytes int) Option {
	return func(o *ringOptions) {
		if bytes >= 0 {
			o.maxMemory = bytes
		}
	}
}

func applyOptions(options ...Option) *ringOptions {
	opts := &ringOptions{
		allocator: HeapAllocator,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	if opts.name == "" {
		opts.name = "ring-" + uuid.NewString()[:8]
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return opts
}
