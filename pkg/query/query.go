// Package query implements the search pipeline: index top-k retrieval
// composed with declarative or programmatic metadata filtering, with
// principled over-fetch when a filter is present. Grounded on the teacher's
// store_search.go/store_query.go pipeline shape, redesigned around the
// spec's exact fetch_k multipliers (k / 3k / 9k).
package query

import (
	"time"

	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/filter"
	"github.com/liliang-cn/vectorcore/pkg/index"
	"github.com/liliang-cn/vectorcore/pkg/store"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// Predicate is a programmatic filter: a caller-supplied Go function
// evaluated the same way a compiled declarative Expr would be.
type Predicate func(*entity.Chunk) bool

// Request describes one query/nearest-neighbor call.
type Request struct {
	LibraryID string
	Vector    []float32
	K         int

	// Filter and Predicate are mutually exclusive; supplying both is a
	// usage error (InvalidArgument).
	Filter    filter.Expr
	Predicate Predicate
}

// Match is one ranked result.
type Match struct {
	Chunk *entity.Chunk
	Score float32
}

// Response is the outcome of a successful query.
type Response struct {
	Matches     []Match
	Total       int
	QueryTimeMS float64
}

// Pipeline runs queries against a store's entity tables and index registry.
type Pipeline struct {
	store *store.Store
	reg   *index.Registry
}

// New creates a Pipeline over s, using s's own index registry so lookups
// never see a registry binding the store itself doesn't know about.
func New(s *store.Store) *Pipeline {
	return &Pipeline{store: s, reg: s.Registry()}
}

// Run executes req and returns up to req.K ranked matches. The pipeline
// acquires the store's reentrant lock once for the full duration of the
// call and re-enters it through the store/registry methods it calls,
// rather than taking separate locks per step (§5).
func (p *Pipeline) Run(req Request) (*Response, error) {
	p.store.Lock()
	defer p.store.Unlock()

	start := time.Now()

	if req.Filter != nil && req.Predicate != nil {
		return nil, vecerrors.New("query.run", vecerrors.InvalidArgument, errMutuallyExclusiveFilters)
	}
	if req.K < 1 || req.K > 1000 {
		return nil, vecerrors.Newf("query.run", vecerrors.InvalidArgument, "k must be in [1, 1000], got %d", req.K)
	}

	lib, err := p.store.GetLibrary(req.LibraryID)
	if err != nil {
		return nil, err
	}
	if lib.Dimension != 0 && len(req.Vector) != lib.Dimension {
		return nil, vecerrors.Newf("query.run", vecerrors.DimensionMismatch,
			"expected dimension %d, got %d", lib.Dimension, len(req.Vector))
	}

	fetchK := fetchKFor(req)

	idx, ok := p.reg.Get(req.LibraryID)
	if !ok {
		return nil, vecerrors.New("query.run", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	candidates, err := idx.Search(req.Vector, fetchK)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, req.K)
	considered := 0
	for _, c := range candidates {
		chunk, err := p.store.GetChunk(c.ID)
		if err != nil {
			// Concurrently deleted between index search and store lookup;
			// skip silently per §5's search/delete race tolerance.
			continue
		}
		considered++

		if !passes(req, chunk) {
			continue
		}
		matches = append(matches, Match{Chunk: chunk, Score: c.Score})
		if len(matches) == req.K {
			break
		}
	}

	return &Response{
		Matches:     matches,
		Total:       considered,
		QueryTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}, nil
}

func passes(req Request, chunk *entity.Chunk) bool {
	switch {
	case req.Filter != nil:
		return filter.Evaluate(req.Filter, chunk)
	case req.Predicate != nil:
		return req.Predicate(chunk)
	default:
		return true
	}
}

func fetchKFor(req Request) int {
	switch {
	case req.Filter != nil && req.Predicate != nil:
		return 9 * req.K
	case req.Filter != nil, req.Predicate != nil:
		return 3 * req.K
	default:
		return req.K
	}
}

var errMutuallyExclusiveFilters = mutuallyExclusiveErr{}

type mutuallyExclusiveErr struct{}

func (mutuallyExclusiveErr) Error() string {
	return "filter and predicate are mutually exclusive in the same query"
}
