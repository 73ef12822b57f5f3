package index

import (
	"container/heap"

	"github.com/liliang-cn/vectorcore/pkg/metric"
)

// Flat is a brute-force exact search index, grounded on the teacher's
// FlatIndex: an ordered id->vector map plus a heap-based top-k scan. There
// is no separate build step; it is always effectively built.
type Flat struct {
	vectors   map[string][]float32
	dimension int
	score     metric.Func
}

// NewFlat creates a Flat index that scores candidates with score.
func NewFlat(score metric.Func) *Flat {
	if score == nil {
		score = metric.CosineScore
	}
	return &Flat{
		vectors: make(map[string][]float32),
		score:   score,
	}
}

func (f *Flat) Add(id string, vector []float32) error {
	if f.dimension == 0 {
		f.dimension = len(vector)
	}
	if len(vector) != f.dimension {
		return dimensionErr("flat.add", f.dimension, len(vector))
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	f.vectors[id] = v
	return nil
}

func (f *Flat) BulkAdd(items []Item) error {
	for _, it := range items {
		if err := f.Add(it.ID, it.Vector); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flat) Update(id string, vector []float32) error {
	if _, ok := f.vectors[id]; !ok {
		return notFoundErr("flat.update", id)
	}
	delete(f.vectors, id)
	return f.Add(id, vector)
}

func (f *Flat) Delete(id string) error {
	if _, ok := f.vectors[id]; !ok {
		return notFoundErr("flat.delete", id)
	}
	delete(f.vectors, id)
	return nil
}

func (f *Flat) Clear() {
	f.vectors = make(map[string][]float32)
	f.dimension = 0
}

func (f *Flat) Len() int { return len(f.vectors) }

func (f *Flat) Dimension() int { return f.dimension }

func (f *Flat) Build() error { return nil }

// Search performs an exhaustive scan, keeping the running top-k in a
// min-heap the same way the teacher's FlatIndex kept a max-heap over
// distance — here the heap root is always the worst-ranked kept candidate,
// evicted as soon as a better one shows up.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if f.dimension != 0 && len(query) != f.dimension {
		return nil, dimensionErr("flat.search", f.dimension, len(query))
	}
	if len(f.vectors) == 0 || k <= 0 {
		return []Result{}, nil
	}

	h := &worstFirstHeap{}
	heap.Init(h)
	for id, vector := range f.vectors {
		r := Result{ID: id, Score: f.score(query, vector)}
		if h.Len() < k {
			heap.Push(h, r)
		} else if ranksAbove(r, (*h)[0]) {
			heap.Pop(h)
			heap.Push(h, r)
		}
	}

	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Result)
	}
	sortResults(results)
	return results, nil
}

// ranksAbove reports whether a ranks strictly above b under the
// score-descending, id-ascending ordering the spec requires.
func ranksAbove(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// worstFirstHeap is a min-heap (root = worst-ranked element) over Result.
type worstFirstHeap []Result

func (h worstFirstHeap) Len() int            { return len(h) }
func (h worstFirstHeap) Less(i, j int) bool  { return ranksAbove(h[j], h[i]) }
func (h worstFirstHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *worstFirstHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *worstFirstHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
