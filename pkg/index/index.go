// Package index implements the pluggable ANN index family: a common
// contract plus Flat (exact) and IVF (approximate, k-means-partitioned)
// implementations, and a registry that binds one index per library.
//
// Indexes are not internally thread-safe. Callers (the entity store, via
// its single reentrant lock) are responsible for synchronization.
package index

import (
	"sort"

	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// Item is one (id, vector) pair for bulk insertion.
type Item struct {
	ID     string
	Vector []float32
}

// Result is one scored candidate returned by Search, score-descending.
type Result struct {
	ID    string
	Score float32
}

// Index is the common contract every ANN implementation satisfies.
type Index interface {
	// Add inserts a vector under id. Returns a DimensionMismatch error if the
	// vector length doesn't match the index's established dimension (set on
	// first Add).
	Add(id string, vector []float32) error
	// BulkAdd is semantically equivalent to repeated Add but may defer
	// clustering/build work until the batch is in.
	BulkAdd(items []Item) error
	// Update is delete-then-add. Returns a NotFound error if id is absent.
	Update(id string, vector []float32) error
	// Delete removes id. Returns a NotFound error if absent.
	Delete(id string) error
	// Clear empties all state and resets to the unbuilt state.
	Clear()
	// Search returns up to k results sorted score-descending, ties broken
	// by ascending id. Returns a DimensionMismatch error on a query length
	// mismatch. Empty index -> empty results, no error.
	Search(query []float32, k int) ([]Result, error)
	// Build performs (or re-performs) whatever up-front construction the
	// index needs. A no-op is still valid for indexes with no build step.
	Build() error
	// Len reports how many vectors the index currently holds.
	Len() int
	// Dimension reports the established embedding dimension, or 0 if no
	// vector has been added yet.
	Dimension() int
}

func dimensionErr(op string, want, got int) error {
	return vecerrors.Newf(op, vecerrors.DimensionMismatch, "expected dimension %d, got %d", want, got)
}

func notFoundErr(op, id string) error {
	return vecerrors.New(op, vecerrors.NotFound, vecerrors.ErrChunkNotFound)
}

// sortResults orders results score-descending, ties broken by ascending id.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// topK truncates results (already sorted) to at most k entries.
func topK(results []Result, k int) []Result {
	if k < len(results) {
		return results[:k]
	}
	return results
}
