package vecbench

import (
	"log/slog"

	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/sweep"
)

// Config holds everything fixed for the lifetime of a Bench.
type Config struct {
	// Metric is used for datasets loaded from disk. Synthetic datasets
	// carry their own.
	Metric metric.Metric

	// BuildThreads and SearchThreads size the family worker pools.
	// Values <= 0 use GOMAXPROCS.
	BuildThreads  int
	SearchThreads int

	// SIMD selects the distance kernels: auto, generic, neon, avx2, avx512.
	SIMD string

	// WorkDir is the root of per-index work directories.
	WorkDir string

	// BlobStore receives persisted index artifacts. Nil uses a local
	// store under WorkDir.
	BlobStore blobstore.BlobStore

	// Codec compresses artifact blobs.
	Codec codec.Type

	Logger           *Logger
	MetricsCollector MetricsCollector

	// MemoryLimitBytes caps converted dataset copies. 0 means unlimited.
	MemoryLimitBytes int64

	// ArtifactIOBytesPerSec throttles artifact reads and writes. 0 means unlimited.
	ArtifactIOBytesPerSec int64

	// NQs are the query-batch sizes. Empty means one batch of all queries.
	NQs []int

	// Ks are the top-k values.
	Ks []int
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		Metric:           metric.L2,
		SIMD:             "auto",
		Codec:            codec.Zstd,
		Logger:           NoopLogger(),
		MetricsCollector: NoopMetricsCollector{},
		Ks:               append([]int(nil), sweep.DefaultKs...),
	}
}

// Option configures a Bench.
type Option func(*Config)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(o *Config) {
		*o = cfg
	}
}

// WithMetric sets the metric for datasets loaded from disk.
func WithMetric(m metric.Metric) Option {
	return func(o *Config) {
		o.Metric = m
	}
}

// WithBuildThreads bounds the workers of one Build.
func WithBuildThreads(n int) Option {
	return func(o *Config) {
		o.BuildThreads = n
	}
}

// WithSearchThreads bounds the workers of one Search.
func WithSearchThreads(n int) Option {
	return func(o *Config) {
		o.SearchThreads = n
	}
}

// WithSIMD selects the distance kernel acceleration mode.
//
// Selecting an instruction set the CPU lacks makes New fail.
func WithSIMD(mode string) Option {
	return func(o *Config) {
		o.SIMD = mode
	}
}

// WithWorkDir sets the root of the per-index work directories.
func WithWorkDir(dir string) Option {
	return func(o *Config) {
		o.WorkDir = dir
	}
}

// WithBlobStore sets where index artifacts are persisted.
//
// Example with S3:
//
//	store, _ := s3.New(ctx, "bench-artifacts", s3.WithPrefix("runs/2024-06/"))
//	b, _ := vecbench.New(vecbench.WithBlobStore(store))
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *Config) {
		o.BlobStore = store
	}
}

// WithCodec sets the artifact compression codec.
func WithCodec(c codec.Type) Option {
	return func(o *Config) {
		o.Codec = c
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecbench.NewJSONLogger(slog.LevelInfo)
//	b, _ := vecbench.New(vecbench.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *Config) {
		o.Logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *Config) {
		o.Logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for lifecycle operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecbench.BasicMetricsCollector{}
//	b, _ := vecbench.New(vecbench.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Builds: %d, Avg search: %dns\n", stats.BuildCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *Config) {
		o.MetricsCollector = mc
	}
}

// WithMemoryLimit caps the bytes reserved for converted dataset copies.
func WithMemoryLimit(bytes int64) Option {
	return func(o *Config) {
		o.MemoryLimitBytes = bytes
	}
}

// WithArtifactIOLimit throttles artifact IO to bytesPerSec.
func WithArtifactIOLimit(bytesPerSec int64) Option {
	return func(o *Config) {
		o.ArtifactIOBytesPerSec = bytesPerSec
	}
}

// WithNQs sets the query-batch sizes.
func WithNQs(nqs ...int) Option {
	return func(o *Config) {
		o.NQs = nqs
	}
}

// WithKs sets the top-k values.
func WithKs(ks ...int) Option {
	return func(o *Config) {
		o.Ks = ks
	}
}

func applyOptions(optFns []Option) Config {
	o := DefaultConfig()
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = NoopLogger()
	}
	if o.MetricsCollector == nil {
		o.MetricsCollector = NoopMetricsCollector{}
	}
	return o
}
