package index

import (
	"github.com/liliang-cn/vectorcore/pkg/metric"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// Config is the recognized shape of a library's index_config map (§3).
type Config struct {
	Metric metric.Metric
	NList  int // IVF only; 0 means auto
	NProbe int // IVF only; 0 means DefaultNProbe
}

// ParseConfig validates and extracts recognized keys from a raw index
// config map (the shape that arrives over the wire or from a snapshot).
func ParseConfig(raw map[string]any) (Config, error) {
	cfg := Config{Metric: metric.Cosine}

	if m, ok := raw["metric"]; ok {
		name, ok := m.(string)
		if !ok || !metric.Valid(metric.Metric(name)) {
			return Config{}, vecerrors.Newf("index.config", vecerrors.InvalidArgument, "unknown metric %v", m)
		}
		cfg.Metric = metric.Metric(name)
	}

	if n, ok := raw["nlist"]; ok {
		v, err := asPositiveInt(n)
		if err != nil {
			return Config{}, vecerrors.Newf("index.config", vecerrors.InvalidArgument, "invalid nlist: %v", err)
		}
		cfg.NList = v
	}

	if n, ok := raw["nprobe"]; ok {
		v, err := asPositiveInt(n)
		if err != nil {
			return Config{}, vecerrors.Newf("index.config", vecerrors.InvalidArgument, "invalid nprobe: %v", err)
		}
		cfg.NProbe = v
	}

	return cfg, nil
}

func asPositiveInt(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		n = int(t)
	default:
		return 0, vecerrors.Newf("index.config", vecerrors.InvalidArgument, "expected a positive integer, got %T", v)
	}
	if n <= 0 {
		return 0, vecerrors.Newf("index.config", vecerrors.InvalidArgument, "must be positive, got %d", n)
	}
	return n, nil
}

// New constructs the Index implementation for kind using cfg. hnsw is
// reserved but not yet implemented (see DESIGN.md).
func New(kind string, cfg Config) (Index, error) {
	score := metric.Resolve(cfg.Metric)
	switch kind {
	case "flat":
		return NewFlat(score), nil
	case "ivf":
		return NewIVF(score, cfg.NList, cfg.NProbe), nil
	case "hnsw":
		return nil, vecerrors.New("index.new", vecerrors.InvalidArgument, errHNSWReserved)
	default:
		return nil, vecerrors.Newf("index.new", vecerrors.InvalidArgument, "unknown index kind %q", kind)
	}
}

var errHNSWReserved = hnswReservedErr{}

type hnswReservedErr struct{}

func (hnswReservedErr) Error() string {
	return "hnsw index kind is reserved but not implemented"
}

// Registry binds one Index instance per library and tracks a dirty flag
// for each. Lazy building on first search is done by the index itself
// (IVF.Search builds a Pending index). Not internally thread-safe: callers hold the store's lock.Reentrant for
// the full duration of any registry operation.
type Registry struct {
	indexes map[string]Index
	dirty   map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		indexes: make(map[string]Index),
		dirty:   make(map[string]bool),
	}
}

// Create binds a new, unbuilt index of kind to libraryID.
func (r *Registry) Create(libraryID, kind string, cfg Config) error {
	idx, err := New(kind, cfg)
	if err != nil {
		return err
	}
	r.indexes[libraryID] = idx
	r.dirty[libraryID] = false
	return nil
}

// Get returns the index bound to libraryID.
func (r *Registry) Get(libraryID string) (Index, bool) {
	idx, ok := r.indexes[libraryID]
	return idx, ok
}

// Drop removes the index bound to libraryID (used on library deletion).
func (r *Registry) Drop(libraryID string) {
	delete(r.indexes, libraryID)
	delete(r.dirty, libraryID)
}

// MarkDirty flags libraryID's index as having unbuilt incremental changes.
// The IVF/Flat implementations already maintain themselves incrementally,
// so this is informational bookkeeping, readable through Dirty, rather than
// a gate on search correctness.
func (r *Registry) MarkDirty(libraryID string) {
	r.dirty[libraryID] = true
}

// Dirty reports whether libraryID's index has unbuilt incremental changes.
func (r *Registry) Dirty(libraryID string) bool {
	return r.dirty[libraryID]
}

// Build explicitly rebuilds libraryID's index and clears its dirty flag.
func (r *Registry) Build(libraryID string) error {
	idx, ok := r.indexes[libraryID]
	if !ok {
		return vecerrors.New("index.build", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	if err := idx.Build(); err != nil {
		return err
	}
	r.dirty[libraryID] = false
	return nil
}
