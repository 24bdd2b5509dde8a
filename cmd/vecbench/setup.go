package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/vecbench"
	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/blobstore/minio"
	"github.com/hupe1980/vecbench/blobstore/s3"
	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/dataset"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/report"
	"github.com/hupe1980/vecbench/sweep"
)

func newLogger(cfg logConfig, w io.Writer) (*vecbench.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return vecbench.NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return vecbench.NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func openStore(ctx context.Context, cfg storeConfig, workDir string) (blobstore.BlobStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join(workDir, "artifacts")
		}
		return blobstore.NewLocalStore(dir), nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New("store: s3 requires a bucket")
		}
		opts := []s3.Option{s3.WithPrefix(cfg.Prefix)}
		if cfg.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.Endpoint))
		}
		if cfg.PathStyle {
			opts = append(opts, s3.WithPathStyle())
		}
		return s3.New(ctx, cfg.Bucket, opts...)
	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, errors.New("store: minio requires an endpoint and a bucket")
		}
		return minio.Dial(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.Prefix, cfg.Secure)
	default:
		return nil, fmt.Errorf("store: unknown kind %q", cfg.Kind)
	}
}

func parsePrecisions(names []string) ([]precision.Type, error) {
	out := make([]precision.Type, 0, len(names))
	for _, n := range names {
		t, err := precision.ParseType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func benchOptions(cfg fileConfig, logger *vecbench.Logger, store blobstore.BlobStore) ([]vecbench.Option, error) {
	m, err := metric.Parse(cfg.Metric)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return []vecbench.Option{
		vecbench.WithMetric(m),
		vecbench.WithSIMD(cfg.SIMD),
		vecbench.WithBuildThreads(cfg.Threads.Build),
		vecbench.WithSearchThreads(cfg.Threads.Search),
		vecbench.WithWorkDir(cfg.WorkDir),
		vecbench.WithBlobStore(store),
		vecbench.WithCodec(c),
		vecbench.WithLogger(logger),
		vecbench.WithMemoryLimit(cfg.MemLimit),
		vecbench.WithArtifactIOLimit(cfg.IOLimit),
		vecbench.WithNQs(cfg.NQ...),
		vecbench.WithKs(cfg.K...),
	}, nil
}

func loadDataset(ctx context.Context, b *vecbench.Bench, cfg datasetConfig) (*dataset.Dataset, error) {
	switch strings.ToLower(cfg.Source) {
	case "", "synthetic":
		sc := dataset.SyntheticConfig{
			Name:     cfg.Name,
			Metric:   b.Config().Metric,
			Rows:     cfg.Synthetic.Rows,
			Queries:  cfg.Synthetic.Queries,
			Dim:      cfg.Synthetic.Dim,
			Clusters: cfg.Synthetic.Clusters,
			Spread:   cfg.Synthetic.Spread,
			Width:    cfg.Synthetic.Width,
			Seed:     cfg.Synthetic.Seed,
		}
		return b.Synthetic(ctx, sc)
	case "texmex":
		if cfg.Dir == "" {
			return nil, errors.New("dataset: texmex requires dataset.dir")
		}
		return b.Load(cfg.Dir, cfg.Name)
	default:
		return nil, fmt.Errorf("dataset: unknown source %q", cfg.Source)
	}
}

func toGrid(axes []axisConfig) sweep.Grid {
	g := make(sweep.Grid, len(axes))
	for i, a := range axes {
		g[i] = sweep.Axis{Name: a.Name, Values: a.Values}
	}
	return g
}

// buildPlans returns the configured plans, or the default plans filtered
// to families when none are configured.
func buildPlans(cfg fileConfig) ([]sweep.Plan, error) {
	precisions, err := parsePrecisions(cfg.Precisions)
	if err != nil {
		return nil, err
	}

	if len(cfg.Plans) == 0 {
		plans := sweep.DefaultPlans(precisions...)
		if len(cfg.Families) == 0 {
			return plans, nil
		}
		var out []sweep.Plan
		for _, name := range cfg.Families {
			i := slices.IndexFunc(plans, func(p sweep.Plan) bool { return strings.EqualFold(p.Family, name) })
			if i < 0 {
				// Keep it so the driver rejects it before building anything.
				out = append(out, sweep.Plan{Family: name, Precisions: precisions})
				continue
			}
			out = append(out, plans[i])
		}
		return out, nil
	}

	out := make([]sweep.Plan, 0, len(cfg.Plans))
	for _, pc := range cfg.Plans {
		p := sweep.Plan{
			Family:     pc.Family,
			Precisions: precisions,
			Fixed:      pc.Fixed,
			Build:      toGrid(pc.Build),
			Search:     toGrid(pc.Search),
			RoundTrip:  pc.RoundTrip,
		}
		if len(pc.Precisions) > 0 {
			if p.Precisions, err = parsePrecisions(pc.Precisions); err != nil {
				return nil, fmt.Errorf("plan %s: %w", pc.Family, err)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// openSinks returns the sinks for cfg and a closer for the files it opened.
func openSinks(cfg reportConfig, stdout io.Writer) (report.Sink, func() error, error) {
	var (
		sinks report.MultiSink
		files []*os.File
	)
	closeAll := func() error {
		errs := []error{sinks.Close()}
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}
	output := func(ext string) (io.Writer, error) {
		if cfg.Output == "" || cfg.Output == "-" {
			return stdout, nil
		}
		f, err := os.Create(cfg.Output + ext)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		return f, nil
	}

	for _, format := range cfg.Formats {
		switch strings.ToLower(format) {
		case "text":
			w, err := output(".txt")
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			sinks = append(sinks, report.NewTextSink(w))
		case "csv":
			w, err := output(".csv")
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			sinks = append(sinks, report.NewCSVSink(w))
		case "json":
			w, err := output(".jsonl")
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			sinks = append(sinks, report.NewJSONSink(w))
		case "sqlite":
			dsn := cfg.SQLite
			if dsn == "" {
				dsn = "vecbench.db"
			}
			run := cfg.Run
			if run == "" {
				run = time.Now().UTC().Format(time.RFC3339)
			}
			s, err := report.OpenSQLiteSink(dsn, run)
			if err != nil {
				return nil, nil, errors.Join(err, closeAll())
			}
			sinks = append(sinks, s)
		default:
			return nil, nil, errors.Join(fmt.Errorf("report: unknown format %q", format), closeAll())
		}
	}
	return sinks, closeAll, nil
}
