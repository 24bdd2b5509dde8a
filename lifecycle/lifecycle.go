package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/hupe1980/vecbench/blobstore"
	"github.com/hupe1980/vecbench/codec"
	"github.com/hupe1980/vecbench/index"
	"github.com/hupe1980/vecbench/internal/resource"
	"github.com/hupe1980/vecbench/metric"
	"github.com/hupe1980/vecbench/precision"
	"github.com/hupe1980/vecbench/report"
)

var (
	// ErrAlreadyBuilt is returned by a second Build on the same handle.
	ErrAlreadyBuilt = errors.New("lifecycle: index already built")

	// ErrNotBuilt is returned when an operation needs a built or restored index.
	ErrNotBuilt = errors.New("lifecycle: index not built")

	// ErrHandleLive is returned by Create while a previous handle is unreleased.
	ErrHandleLive = errors.New("lifecycle: previous handle not released")

	// ErrReleased is returned for operations on a released handle.
	ErrReleased = errors.New("lifecycle: handle released")

	// ErrWorkDirLocked is returned when another process holds the work directory.
	ErrWorkDirLocked = errors.New("lifecycle: work directory locked")

	// ErrNoInstance is returned by Build after a Restore lost the instance.
	ErrNoInstance = errors.New("lifecycle: handle has no index instance")
)

// MetricsCollector receives one call per timed lifecycle operation.
type MetricsCollector interface {
	RecordBuild(family string, duration time.Duration, err error)
	RecordSearch(family string, k int, duration time.Duration, err error)
	RecordPersist(family string, bytes int64, duration time.Duration, err error)
	RecordRestore(family string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordBuild(string, time.Duration, error)          {}
func (noopMetrics) RecordSearch(string, int, time.Duration, error)    {}
func (noopMetrics) RecordPersist(string, int64, time.Duration, error) {}
func (noopMetrics) RecordRestore(string, time.Duration, error)        {}

// Config wires a Manager to the rest of the harness.
type Config struct {
	Registry   *index.Registry
	Metric     metric.Metric
	Kernel     metric.Kernel
	Controller *resource.Controller
	Logger     *slog.Logger

	// WorkDir is the root of the per-handle work directories.
	// Defaults to $TMPDIR/vecbench.
	WorkDir string

	// Store receives persisted artifacts. Defaults to a LocalStore
	// under WorkDir/artifacts.
	Store blobstore.BlobStore

	// Codec compresses artifact blobs.
	Codec codec.Type

	Metrics MetricsCollector
}

// Manager creates, builds, persists, restores, searches and releases index
// instances. It is not safe for concurrent Create/Release.
type Manager struct {
	cfg Config

	mu   sync.Mutex
	live *Handle
}

// NewManager validates cfg and fills in defaults.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, errors.New("lifecycle: registry is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "vecbench")
	}
	if cfg.Store == nil {
		cfg.Store = blobstore.NewLocalStore(filepath.Join(cfg.WorkDir, "artifacts"))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	return &Manager{cfg: cfg}, nil
}

// Store returns the artifact store.
func (m *Manager) Store() blobstore.BlobStore { return m.cfg.Store }

// Handle is one index instance bound to a family, metric and precision.
type Handle struct {
	family    string
	precision precision.Type
	env       index.Env

	idx      index.Index
	built    bool
	build    index.Params
	dir      string
	lock     *flock.Flock
	released bool

	artifacts []Artifact
}

// Family returns the registry name of the handle's family.
func (h *Handle) Family() string { return h.family }

// Precision returns the element representation of the handle.
func (h *Handle) Precision() precision.Type { return h.precision }

// Built reports whether the handle holds a built or restored index.
func (h *Handle) Built() bool { return h.built }

// BuildParams returns the build configuration in effect.
func (h *Handle) BuildParams() index.Params { return h.build }

// WorkDir returns the handle's private directory.
func (h *Handle) WorkDir() string { return h.dir }

// Artifact names the blobs written by one Persist.
type Artifact struct {
	Prefix string
	Blobs  []string
	Codec  codec.Type
	// Size is the serialized size before compression.
	Size int64
	// StoredSize is the number of bytes written to the store.
	StoredSize int64
}

// Key returns the store key of blob name.
func (a Artifact) Key(name string) string { return path.Join(a.Prefix, name) }

// Create returns a fresh handle for family at typ.
func (m *Manager) Create(family string, typ precision.Type) (*Handle, error) {
	if _, err := m.cfg.Registry.Lookup(family); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrHandleLive, m.live.family, m.live.precision)
	}

	dir := filepath.Join(m.cfg.WorkDir, fmt.Sprintf("%s-%s-%s", family, m.cfg.Metric, typ))
	if err := os.MkdirAll(m.cfg.WorkDir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(dir + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkDirLocked, dir)
	}
	// A leftover directory belongs to a crashed run; we hold the lock now.
	if err := os.RemoveAll(dir); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	env := index.Env{
		Family:     family,
		Metric:     m.cfg.Metric,
		Precision:  typ,
		Kernel:     m.cfg.Kernel,
		Controller: m.cfg.Controller,
		Logger:     m.cfg.Logger.With("family", family, "precision", typ.String()),
		WorkDir:    filepath.Join(dir, "index"),
	}
	idx, err := m.cfg.Registry.New(family, env)
	if err != nil {
		_ = os.RemoveAll(dir)
		_ = lock.Unlock()
		return nil, err
	}

	h := &Handle{
		family:    family,
		precision: typ,
		env:       env,
		idx:       idx,
		dir:       dir,
		lock:      lock,
	}
	m.live = h
	return h, nil
}

func checkType(h *Handle, mat *precision.Matrix, what string) error {
	if mat.Type() != h.precision {
		return fmt.Errorf("lifecycle: %s is %s, handle is %s: %w", what, mat.Type(), h.precision, precision.ErrShapeMismatch)
	}
	return nil
}

// Build populates the handle's index. It is timed and may run only once.
func (m *Manager) Build(ctx context.Context, h *Handle, base *precision.Matrix, params index.Params) (time.Duration, error) {
	if h.released {
		return 0, ErrReleased
	}
	if h.built {
		return 0, ErrAlreadyBuilt
	}
	if h.idx == nil {
		return 0, ErrNoInstance
	}
	if err := checkType(h, base, "base"); err != nil {
		return 0, err
	}

	elapsed, err := report.Measure(func() error {
		return h.idx.Build(ctx, base, params)
	})
	m.cfg.Metrics.RecordBuild(h.family, elapsed, err)
	if err != nil {
		return elapsed, fmt.Errorf("lifecycle: build %s(%s): %w", h.family, params, err)
	}
	h.built = true
	h.build = params

	h.env.Log().Debug("index built", "params", params.String(), "elapsed", elapsed)
	return elapsed, nil
}

// Search runs one timed search over queries. It does not change the handle.
func (m *Manager) Search(ctx context.Context, h *Handle, queries *precision.Matrix, k int, params index.Params) ([][]int64, time.Duration, error) {
	if h.released {
		return nil, 0, ErrReleased
	}
	if !h.built {
		return nil, 0, ErrNotBuilt
	}
	if k <= 0 {
		return nil, 0, fmt.Errorf("lifecycle: k must be positive, got %d", k)
	}
	if err := checkType(h, queries, "queries"); err != nil {
		return nil, 0, err
	}

	var ids [][]int64
	elapsed, err := report.Measure(func() error {
		var err error
		ids, err = h.idx.Search(ctx, queries, k, params)
		return err
	})
	m.cfg.Metrics.RecordSearch(h.family, k, elapsed, err)
	if err != nil {
		return nil, elapsed, fmt.Errorf("lifecycle: search %s(%s): %w", h.family, params, err)
	}
	return ids, elapsed, nil
}

func (m *Manager) prefix(h *Handle) string {
	build := h.build.String()
	if build == "" {
		build = "default"
	}
	return path.Join(h.family, h.env.Metric.String(), h.precision.String(), build)
}

// Persist serializes the index and writes every blob to the store.
func (m *Manager) Persist(ctx context.Context, h *Handle) (Artifact, error) {
	if h.released {
		return Artifact{}, ErrReleased
	}
	if !h.built {
		return Artifact{}, ErrNotBuilt
	}

	art := Artifact{Prefix: m.prefix(h), Codec: m.cfg.Codec}
	elapsed, err := report.Measure(func() error {
		set, err := h.idx.Serialize()
		if err != nil {
			return err
		}
		for _, name := range set.Names() {
			data, err := codec.Compress(m.cfg.Codec, set[name])
			if err != nil {
				return err
			}
			if err := m.cfg.Controller.AcquireIO(ctx, len(data)); err != nil {
				return err
			}
			if err := m.cfg.Store.Put(ctx, art.Key(name), data); err != nil {
				return err
			}
			art.Blobs = append(art.Blobs, name)
			art.Size += int64(len(set[name]))
			art.StoredSize += int64(len(data))
		}
		return nil
	})
	// Track what reached the store even on failure so Release can clean it up.
	if len(art.Blobs) > 0 {
		h.artifacts = append(h.artifacts, art)
	}
	m.cfg.Metrics.RecordPersist(h.family, art.StoredSize, elapsed, err)
	if err != nil {
		return Artifact{}, fmt.Errorf("lifecycle: persist %s: %w", h.family, err)
	}

	h.env.Log().Debug("index persisted",
		"prefix", art.Prefix,
		"blobs", len(art.Blobs),
		"bytes", art.Size,
		"stored_bytes", art.StoredSize,
		"codec", art.Codec.String(),
		"elapsed", elapsed,
	)
	return art, nil
}

func (m *Manager) load(ctx context.Context, art Artifact) (index.BinarySet, error) {
	set := make(index.BinarySet, len(art.Blobs))
	for _, name := range art.Blobs {
		block, err := blobstore.ReadAll(ctx, m.cfg.Store, art.Key(name))
		if err != nil {
			return nil, err
		}
		if err := m.cfg.Controller.AcquireIO(ctx, len(block)); err != nil {
			return nil, err
		}
		data, err := codec.Decompress(art.Codec, block)
		if err != nil {
			return nil, fmt.Errorf("blob %s: %w", name, err)
		}
		set[name] = data
	}
	return set, nil
}

// Restore replaces the handle's instance with a fresh one loaded from art.
// If the blobs cannot be read the current instance is kept; a failure after
// that leaves the handle unbuilt.
func (m *Manager) Restore(ctx context.Context, h *Handle, art Artifact, params index.Params) (time.Duration, error) {
	if h.released {
		return 0, ErrReleased
	}

	elapsed, err := report.Measure(func() error {
		set, err := m.load(ctx, art)
		if err != nil {
			return err
		}
		old := h.idx
		h.idx = nil
		h.built = false
		if err := old.Close(); err != nil {
			return err
		}
		idx, err := m.cfg.Registry.New(h.family, h.env)
		if err != nil {
			return err
		}
		h.idx = idx
		return idx.Deserialize(set, params)
	})
	m.cfg.Metrics.RecordRestore(h.family, elapsed, err)
	if err != nil {
		return elapsed, fmt.Errorf("lifecycle: restore %s from %s: %w", h.family, art.Prefix, err)
	}
	h.built = true
	h.build = params

	h.env.Log().Debug("index restored", "prefix", art.Prefix, "elapsed", elapsed)
	return elapsed, nil
}

// Release closes the instance, deletes its artifacts and work directory and
// drops the directory lock. Releasing twice is a no-op.
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	if h == nil || h.released {
		return nil
	}
	h.released = true
	h.built = false

	var errs []error
	if h.idx != nil {
		if err := h.idx.Close(); err != nil {
			errs = append(errs, err)
		}
		h.idx = nil
	}
	for _, art := range h.artifacts {
		for _, name := range art.Blobs {
			if err := m.cfg.Store.Delete(ctx, art.Key(name)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	h.artifacts = nil
	if err := os.RemoveAll(h.dir); err != nil {
		errs = append(errs, err)
	}
	if err := h.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(h.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	m.mu.Lock()
	if m.live == h {
		m.live = nil
	}
	m.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("lifecycle: release %s: %w", h.family, err)
	}
	return nil
}
