package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/vecbench/dataset"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/lifecycle"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/recall"
	"github.com/hupe1980/vecbench/report"
)

// Plan is the sweep of one index family.
type Plan struct {
	Family     string
	Precisions []precision.Type
	// Fixed parameters apply to every build and search configuration.
	Fixed  index.Params
	Build  Grid
	Search Grid
	// RoundTrip persists and restores every built index before searching it.
	RoundTrip bool
}

// Config wires a Driver.
type Config struct {
	Registry   *index.Registry
	Manager    *lifecycle.Manager
	Controller *resource.Controller
	Dataset    *dataset.Dataset
	// NQs are the query-batch sizes; each batch is a prefix of the queries.
	NQs []int
	// Ks are the top-k values.
	Ks     []int
	Sink   report.Sink
	Logger *slog.Logger
}

// Driver runs plans against one dataset.
type Driver struct {
	cfg   Config
	truth *recall.GroundTruth
	log   *slog.Logger
}

// New validates cfg.
func New(cfg Config) (*Driver, error) {
	if cfg.Registry == nil || cfg.Manager == nil {
		return nil, errors.New("sweep: registry and manager are required")
	}
	if cfg.Dataset == nil {
		return nil, errors.New("sweep: dataset is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("sweep: sink is required")
	}
	if err := cfg.Dataset.Validate(); err != nil {
		return nil, err
	}
	for _, nq := range cfg.NQs {
		if nq <= 0 || nq > cfg.Dataset.Queries.Rows() {
			return nil, &precision.ShapeError{What: "query batch", Want: cfg.Dataset.Queries.Rows(), Got: nq}
		}
	}
	for _, k := range cfg.Ks {
		if k <= 0 {
			return nil, fmt.Errorf("sweep: k must be positive, got %d", k)
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Driver{
		cfg:   cfg,
		truth: recall.NewGroundTruth(cfg.Dataset.GroundTruth),
		log:   log.With("dataset", cfg.Dataset.Name),
	}, nil
}

// Run executes plans in order. Every family is looked up before the first
// Build, so an unknown name aborts without side effects. A failing run of
// one family and precision is abandoned and later runs continue; the
// failures are joined into the returned error. Fatal errors stop the sweep.
func (d *Driver) Run(ctx context.Context, plans ...Plan) error {
	for _, p := range plans {
		if _, err := d.cfg.Registry.Lookup(p.Family); err != nil {
			return err
		}
	}

	ds := d.cfg.Dataset
	adapter, err := precision.NewAdapter(ds.Base, ds.Queries, d.cfg.Controller)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range plans {
		for _, typ := range p.Precisions {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			err := d.run(ctx, adapter, p, typ)
			if err == nil {
				continue
			}
			errs = append(errs, err)
			if IsFatal(err) {
				return errors.Join(errs...)
			}
			d.log.Warn("family run abandoned", "family", p.Family, "precision", typ.String(), "error", err)
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) run(ctx context.Context, adapter *precision.Adapter, p Plan, typ precision.Type) error {
	start := time.Now()
	builds := p.Build.Combinations()
	searches := p.Search.Combinations()
	if len(builds) == 0 || len(searches) == 0 {
		d.log.Info("family run skipped, empty axis", "family", p.Family, "precision", typ.String())
		return nil
	}
	d.log.Info("family run started",
		"family", p.Family,
		"precision", typ.String(),
		"builds", len(builds),
		"searches", len(searches),
	)
	for _, bc := range builds {
		if err := d.runBuild(ctx, adapter, p, typ, p.Fixed.With(bc), searches); err != nil {
			return err
		}
	}
	d.log.Info("family run done", "family", p.Family, "precision", typ.String(), "elapsed", time.Since(start))
	return nil
}

func (d *Driver) runBuild(ctx context.Context, adapter *precision.Adapter, p Plan, typ precision.Type, build index.Params, searches []index.Params) (err error) {
	mgr := d.cfg.Manager
	leaf := func(stage Stage, err error) *LeafError {
		return &LeafError{Family: p.Family, Precision: typ, Stage: stage, Build: build, Err: err}
	}

	sess := adapter.Session(typ)
	defer sess.Release()

	base, err := sess.Base()
	if err != nil {
		return leaf(StageConvert, err)
	}

	h, err := mgr.Create(p.Family, typ)
	if err != nil {
		return leaf(StageCreate, err)
	}
	defer func() {
		// Artifacts are reclaimed even when the sweep was cancelled.
		if rerr := mgr.Release(context.WithoutCancel(ctx), h); rerr != nil {
			err = errors.Join(err, leaf(StageRelease, rerr))
		}
	}()

	header := report.Header{
		Dataset:    d.cfg.Dataset.Name,
		Family:     p.Family,
		Precision:  typ,
		Metric:     d.cfg.Dataset.Metric,
		Build:      build,
		SearchAxes: p.Search.Names(),
		Restored:   p.RoundTrip,
	}

	header.BuildElapsed, err = mgr.Build(ctx, h, base, build)
	if err == nil && p.RoundTrip {
		var elapsed time.Duration
		elapsed, err = d.roundTrip(ctx, h, build)
		header.BuildElapsed += elapsed
	}
	if err != nil {
		header.Err = err
		if serr := d.begin(header); serr != nil {
			return errors.Join(err, serr)
		}
		if serr := d.end(header); serr != nil {
			return errors.Join(err, serr)
		}
		var le *LeafError
		if errors.As(err, &le) {
			return err
		}
		return leaf(StageBuild, err)
	}

	d.log.Info("index ready",
		"family", p.Family,
		"precision", typ.String(),
		"build", build.String(),
		"elapsed", header.BuildElapsed,
	)
	if err := d.begin(header); err != nil {
		return err
	}
	searchErr := d.searchAll(ctx, sess, h, p, typ, build, searches)
	if err := d.end(header); err != nil {
		return errors.Join(searchErr, err)
	}
	return searchErr
}

func (d *Driver) roundTrip(ctx context.Context, h *lifecycle.Handle, build index.Params) (time.Duration, error) {
	var art lifecycle.Artifact
	persistElapsed, err := report.Measure(func() error {
		var err error
		art, err = d.cfg.Manager.Persist(ctx, h)
		return err
	})
	if err != nil {
		return persistElapsed, &LeafError{Family: h.Family(), Precision: h.Precision(), Stage: StagePersist, Build: build, Err: err}
	}
	restoreElapsed, err := d.cfg.Manager.Restore(ctx, h, art, build)
	if err != nil {
		return persistElapsed + restoreElapsed, &LeafError{Family: h.Family(), Precision: h.Precision(), Stage: StageRestore, Build: build, Err: err}
	}
	return persistElapsed + restoreElapsed, nil
}

func (d *Driver) searchAll(ctx context.Context, sess *precision.Session, h *lifecycle.Handle, p Plan, typ precision.Type, build index.Params, searches []index.Params) error {
	for _, sc := range searches {
		cfg := build.With(sc)
		for _, nq := range d.cfg.NQs {
			queries, err := sess.Queries(nq)
			if err != nil {
				return &LeafError{Family: p.Family, Precision: typ, Stage: StageConvert, Build: build, Search: sc, NQ: nq, Err: err}
			}
			truth, err := d.truth.Head(nq)
			if err != nil {
				return &LeafError{Family: p.Family, Precision: typ, Stage: StageRecall, Build: build, Search: sc, NQ: nq, Err: err}
			}
			for _, k := range d.cfg.Ks {
				if err := d.leaf(ctx, h, p, typ, build, sc, cfg, queries, truth, nq, k); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Driver) leaf(ctx context.Context, h *lifecycle.Handle, p Plan, typ precision.Type, build, sc, cfg index.Params, queries *precision.Matrix, truth *recall.GroundTruth, nq, k int) error {
	fail := func(stage Stage, err error) *LeafError {
		return &LeafError{Family: p.Family, Precision: typ, Stage: stage, Build: build, Search: sc, NQ: nq, K: k, Err: err}
	}
	row := report.Row{
		Dataset:   d.cfg.Dataset.Name,
		Family:    p.Family,
		Precision: typ,
		Metric:    d.cfg.Dataset.Metric,
		Build:     build,
		Search:    sc,
		NQ:        nq,
		K:         k,
	}

	ids, elapsed, err := d.cfg.Manager.Search(ctx, h, queries, k, cfg)
	row.Elapsed = elapsed
	if err != nil {
		if p.RoundTrip {
			row.Err = err
			if serr := d.emit(row); serr != nil {
				return errors.Join(fail(StageSearch, err), serr)
			}
		}
		return fail(StageSearch, err)
	}

	row.Recall, err = truth.Compute(ids, k)
	if err != nil {
		return fail(StageRecall, err)
	}
	d.log.Debug("leaf done",
		"family", p.Family,
		"search", sc.String(),
		"nq", nq,
		"k", k,
		"elapsed", elapsed,
		"recall", row.Recall,
	)
	return d.emit(row)
}

func (d *Driver) begin(h report.Header) error {
	if err := d.cfg.Sink.Begin(h); err != nil {
		return &LeafError{Family: h.Family, Precision: h.Precision, Stage: StageReport, Build: h.Build, Err: err}
	}
	return nil
}

func (d *Driver) end(h report.Header) error {
	if err := d.cfg.Sink.End(h); err != nil {
		return &LeafError{Family: h.Family, Precision: h.Precision, Stage: StageReport, Build: h.Build, Err: err}
	}
	return nil
}

func (d *Driver) emit(r report.Row) error {
	if err := d.cfg.Sink.Emit(r); err != nil {
		return &LeafError{
			Family: r.Family, Precision: r.Precision, Stage: StageReport,
			Build: r.Build, Search: r.Search, NQ: r.NQ, K: r.K, Err: err,
		}
	}
	return nil
}
