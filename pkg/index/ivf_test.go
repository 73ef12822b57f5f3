package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/liliang-cn/vectorcore/pkg/metric"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

func TestIVFStateMachine(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	if v.state != ivfEmpty {
		t.Fatalf("expected empty state initially")
	}
	mustIdx(t, v.Add("a", []float32{1, 0}))
	if v.state != ivfPending {
		t.Fatalf("expected pending state after first add, got %v", v.state)
	}
	mustIdx(t, v.Build())
	if v.state != ivfBuilt {
		t.Fatalf("expected built state after Build, got %v", v.state)
	}
}

func TestIVFSearchLazyBuilds(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	vecs := randomVectorsIVF(50, 8, 7)
	for i, vec := range vecs {
		mustIdx(t, v.Add(fmt.Sprintf("vec_%d", i), vec))
	}
	if v.state != ivfPending {
		t.Fatalf("expected pending before first search")
	}

	results, err := v.Search(vecs[0], 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if v.state != ivfBuilt {
		t.Fatalf("expected search to lazily build the index")
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if results[0].ID != "vec_0" {
		t.Errorf("expected exact match to rank first, got %s", results[0].ID)
	}
}

func TestIVFDimensionMismatch(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	mustIdx(t, v.Add("a", []float32{1, 0, 0}))

	if err := v.Add("b", []float32{1, 0}); vecerrors.KindOf(err) != vecerrors.DimensionMismatch {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	if _, err := v.Search([]float32{1, 0}, 1); vecerrors.KindOf(err) != vecerrors.DimensionMismatch {
		t.Fatalf("expected dimension mismatch on search, got %v", err)
	}
}

func TestIVFSearchEmptyIndex(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	results, err := v.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestIVFDeleteEmptiesBackToUnbuilt(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	mustIdx(t, v.Add("a", []float32{1, 0}))
	mustIdx(t, v.Build())

	mustIdx(t, v.Delete("a"))
	if v.Len() != 0 {
		t.Fatalf("expected empty index, got len %d", v.Len())
	}
	if v.state != ivfEmpty {
		t.Fatalf("expected state reset to empty after last delete, got %v", v.state)
	}
}

func TestIVFUpdateAfterBuildReassignsCluster(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	vecs := randomVectorsIVF(60, 8, 11)
	for i, vec := range vecs {
		mustIdx(t, v.Add(fmt.Sprintf("vec_%d", i), vec))
	}
	mustIdx(t, v.Build())

	mustIdx(t, v.Update("vec_0", vecs[1]))
	results, err := v.Search(vecs[1], 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	found := false
	for _, r := range results {
		if r.ID == "vec_0" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected updated vector to be reachable after reassignment, got %+v", results)
	}
}

func TestIVFRecallAgainstFlat(t *testing.T) {
	dim := 16
	vecs := randomVectorsIVF(300, dim, 3)

	flat := NewFlat(metric.CosineScore)
	ivf := NewIVF(metric.CosineScore, 0, 0)
	for i, vec := range vecs {
		id := fmt.Sprintf("vec_%d", i)
		mustIdx(t, flat.Add(id, vec))
		mustIdx(t, ivf.Add(id, vec))
	}
	mustIdx(t, ivf.Build())

	query := vecs[42]
	want, err := flat.Search(query, 10)
	if err != nil {
		t.Fatalf("flat search: %v", err)
	}
	got, err := ivf.Search(query, 10)
	if err != nil {
		t.Fatalf("ivf search: %v", err)
	}
	if got[0].ID != want[0].ID {
		t.Errorf("expected ivf top-1 %q to match flat top-1 %q", got[0].ID, want[0].ID)
	}
}

func TestEffectiveNList(t *testing.T) {
	v := NewIVF(metric.CosineScore, 0, 0)
	cases := []struct{ n, want int }{
		{0, 0},
		{5, 1},
		{9, 1},
		{100, 10},
	}
	for _, c := range cases {
		if got := v.effectiveNList(c.n); got != c.want {
			t.Errorf("effectiveNList(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func randomVectorsIVF(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		cluster := i % 3
		for j := 0; j < dim; j++ {
			vec[j] = rng.Float32() + float32(cluster)*2
		}
		vectors[i] = vec
	}
	return vectors
}
