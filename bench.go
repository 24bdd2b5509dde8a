package vecbench

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/vecbench/dataset"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/index/families"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/lifecycle"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/report"
	"github.com/hupe1980/vecbench/sweep"
)

// Bench runs parameter sweeps with one fixed configuration.
type Bench struct {
	cfg      Config
	registry *index.Registry
	ctrl     *resource.Controller
	kernel   metric.Kernel
}

// New creates a Bench with the bundled index families registered.
func New(optFns ...Option) (*Bench, error) {
	cfg := applyOptions(optFns)

	kernel, err := metric.Select(cfg.SIMD)
	if err != nil {
		return nil, err
	}
	ctrl := resource.NewController(resource.Config{
		BuildThreads:       cfg.BuildThreads,
		SearchThreads:      cfg.SearchThreads,
		MemoryLimitBytes:   cfg.MemoryLimitBytes,
		IOLimitBytesPerSec: cfg.ArtifactIOBytesPerSec,
	})

	cfg.Logger.Debug("bench configured",
		"simd", string(kernel.ISA),
		"build_threads", ctrl.Threads(resource.BuildPool),
		"search_threads", ctrl.Threads(resource.SearchPool),
		"codec", cfg.Codec.String(),
	)
	return &Bench{
		cfg:      cfg,
		registry: families.Default(),
		ctrl:     ctrl,
		kernel:   kernel,
	}, nil
}

// Config returns the effective configuration.
func (b *Bench) Config() Config { return b.cfg }

// Registry returns the family registry. Register custom families before Run.
func (b *Bench) Registry() *index.Registry { return b.registry }

// Kernel returns the selected distance kernels.
func (b *Bench) Kernel() metric.Kernel { return b.kernel }

// Synthetic generates a clustered dataset with exact ground truth.
func (b *Bench) Synthetic(ctx context.Context, cfg dataset.SyntheticConfig) (*dataset.Dataset, error) {
	return dataset.Synthetic(ctx, cfg, b.kernel, b.ctrl)
}

// Load reads the TEXMEX files of dataset name from dir.
func (b *Bench) Load(dir, name string) (*dataset.Dataset, error) {
	return dataset.Load(dir, name, b.cfg.Metric)
}

// Run sweeps plans over ds and reports every leaf to sink.
//
// An unknown family or a shape error aborts before anything is built.
// Failures inside a family run abandon only that run; use errors.As with
// *LeafError to locate them.
func (b *Bench) Run(ctx context.Context, ds *dataset.Dataset, sink report.Sink, plans ...sweep.Plan) error {
	if ds == nil {
		return errors.New("vecbench: nil dataset")
	}
	log := b.cfg.Logger.WithDataset(ds.Name)

	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Registry:   b.registry,
		Metric:     ds.Metric,
		Kernel:     b.kernel,
		Controller: b.ctrl,
		Logger:     log.Logger,
		WorkDir:    b.cfg.WorkDir,
		Store:      b.cfg.BlobStore,
		Codec:      b.cfg.Codec,
		Metrics:    loggingMetrics{log: log, next: b.cfg.MetricsCollector},
	})
	if err != nil {
		return err
	}

	nqs := b.cfg.NQs
	if len(nqs) == 0 && ds.Queries != nil {
		nqs = []int{ds.Queries.Rows()}
	}
	drv, err := sweep.New(sweep.Config{
		Registry:   b.registry,
		Manager:    mgr,
		Controller: b.ctrl,
		Dataset:    ds,
		NQs:        nqs,
		Ks:         b.cfg.Ks,
		Sink:       sink,
		Logger:     log.Logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	err = drv.Run(ctx, plans...)
	log.WithDimension(ds.Dim()).LogRun(ctx, len(plans), time.Since(start), err)
	return err
}
