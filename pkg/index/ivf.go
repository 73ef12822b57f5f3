package index

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/vectorcore/pkg/metric"
)

// ivfState is the build state machine described in SPEC_FULL.md §4.2.2.
type ivfState int

const (
	ivfEmpty ivfState = iota
	ivfPending
	ivfBuilt
)

// DefaultNProbe is used when a library's index config omits nprobe.
const DefaultNProbe = 1

// kmeansRestarts is the number of independent k-means++ initializations run
// per Build, per the spec's "multiple (>=10)" requirement.
const kmeansRestarts = 10

// kmeansMaxIters bounds Lloyd's algorithm per restart.
const kmeansMaxIters = 300

// kmeansSeed is fixed so Build is reproducible run to run, per spec.
const kmeansSeed = 1469598103934665603

type clusterEntry struct {
	id     string
	vector []float32
}

// IVF is an inverted-file index: vectors are partitioned into nlist
// k-means clusters and a query only probes the nprobe nearest ones.
// Grounded on the teacher's IVFIndex (pkg/index/ivf.go) and its kMeansIVF,
// generalized to the spec's explicit Empty/Pending/Built state machine,
// configurable nlist defaulting, and incremental maintenance while built.
type IVF struct {
	state     ivfState
	dimension int
	score     metric.Func

	nlistConfig  int // 0 means "auto: floor(sqrt(n))"
	nprobeConfig int

	vectors   map[string][]float32
	clusters  map[int][]clusterEntry
	centroids [][]float32
}

// NewIVF creates an IVF index. nlist <= 0 means "auto" (floor(sqrt(n)) at
// build time); nprobe <= 0 defaults to DefaultNProbe.
func NewIVF(score metric.Func, nlist, nprobe int) *IVF {
	if score == nil {
		score = metric.CosineScore
	}
	if nprobe <= 0 {
		nprobe = DefaultNProbe
	}
	return &IVF{
		score:        score,
		nlistConfig:  nlist,
		nprobeConfig: nprobe,
		vectors:      make(map[string][]float32),
		clusters:     make(map[int][]clusterEntry),
	}
}

func (v *IVF) Dimension() int { return v.dimension }
func (v *IVF) Len() int       { return len(v.vectors) }

func (v *IVF) Add(id string, vector []float32) error {
	if v.dimension == 0 {
		v.dimension = len(vector)
	}
	if len(vector) != v.dimension {
		return dimensionErr("ivf.add", v.dimension, len(vector))
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	v.vectors[id] = vec

	switch v.state {
	case ivfEmpty:
		v.state = ivfPending
	case ivfBuilt:
		c := v.nearestCentroid(vec)
		v.clusters[c] = append(v.clusters[c], clusterEntry{id: id, vector: vec})
	}
	return nil
}

func (v *IVF) BulkAdd(items []Item) error {
	for _, it := range items {
		if err := v.Add(it.ID, it.Vector); err != nil {
			return err
		}
	}
	return nil
}

func (v *IVF) Update(id string, vector []float32) error {
	if _, ok := v.vectors[id]; !ok {
		return notFoundErr("ivf.update", id)
	}
	if err := v.Delete(id); err != nil {
		return err
	}
	return v.Add(id, vector)
}

func (v *IVF) Delete(id string) error {
	if _, ok := v.vectors[id]; !ok {
		return notFoundErr("ivf.delete", id)
	}
	delete(v.vectors, id)

	if v.state == ivfBuilt {
		for c, entries := range v.clusters {
			for i, e := range entries {
				if e.id == id {
					v.clusters[c] = append(entries[:i], entries[i+1:]...)
					break
				}
			}
		}
	}
	if len(v.vectors) == 0 {
		v.clear()
	}
	return nil
}

func (v *IVF) Clear() { v.clear() }

func (v *IVF) clear() {
	v.state = ivfEmpty
	v.vectors = make(map[string][]float32)
	v.clusters = make(map[int][]clusterEntry)
	v.centroids = nil
	v.dimension = 0
}

// effectiveNList computes min(nlistConfig-or-floor(sqrt(n)), n), minimum 1,
// forced to 1 when n < 10, per SPEC_FULL.md §4.2.2.
func (v *IVF) effectiveNList(n int) int {
	if n == 0 {
		return 0
	}
	if n < 10 {
		return 1
	}
	nlist := v.nlistConfig
	if nlist <= 0 {
		nlist = int(math.Sqrt(float64(n)))
		if nlist < 1 {
			nlist = 1
		}
	}
	if nlist > n {
		nlist = n
	}
	if nlist < 1 {
		nlist = 1
	}
	return nlist
}

func (v *IVF) effectiveNProbe(nlist int) int {
	if v.nprobeConfig > nlist {
		return nlist
	}
	if v.nprobeConfig < 1 {
		return 1
	}
	return v.nprobeConfig
}

// Build (re)computes centroids and reassigns every vector to its nearest
// cluster. Calling Build on an already-built index rebuilds from scratch —
// the spec's explicit resolution of the "does build replace centroids"
// open question.
func (v *IVF) Build() error {
	n := len(v.vectors)
	if n == 0 {
		v.state = ivfBuilt
		v.clusters = make(map[int][]clusterEntry)
		v.centroids = nil
		return nil
	}

	// Sorted ids give k-means the same input order every time, so the fixed
	// seed alone decides the result.
	ids := make([]string, 0, n)
	for id := range v.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	vecs := make([][]float32, 0, n)
	for _, id := range ids {
		vecs = append(vecs, v.vectors[id])
	}

	nlist := v.effectiveNList(n)
	centroids := v.kmeans(vecs, nlist)
	v.centroids = centroids

	clusters := make(map[int][]clusterEntry, nlist)
	for i, vec := range vecs {
		c := nearestCentroidIdx(vec, centroids, v.score)
		clusters[c] = append(clusters[c], clusterEntry{id: ids[i], vector: vec})
	}
	v.clusters = clusters
	v.state = ivfBuilt
	return nil
}

func (v *IVF) nearestCentroid(vec []float32) int {
	return nearestCentroidIdx(vec, v.centroids, v.score)
}

// nearestCentroidIdx returns the index of the centroid with the highest
// score against vec; ties broken by lowest index.
func nearestCentroidIdx(vec []float32, centroids [][]float32, score metric.Func) int {
	best := 0
	bestScore := float32(math.Inf(-1))
	for i, c := range centroids {
		s := score(vec, c)
		if s > bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}

// Search probes the nprobe nearest clusters by centroid score, then scans
// only those clusters' members. Lazily builds if the index is Pending.
func (v *IVF) Search(query []float32, k int) ([]Result, error) {
	if v.dimension != 0 && len(query) != v.dimension {
		return nil, dimensionErr("ivf.search", v.dimension, len(query))
	}
	if v.state == ivfPending {
		if err := v.Build(); err != nil {
			return nil, err
		}
	}
	if len(v.vectors) == 0 || k <= 0 {
		return []Result{}, nil
	}

	nlist := len(v.centroids)
	nprobe := v.effectiveNProbe(nlist)

	type centroidScore struct {
		idx   int
		score float32
	}
	scored := make([]centroidScore, 0, nlist)
	for i, c := range v.centroids {
		if len(v.clusters[i]) == 0 {
			continue
		}
		scored = append(scored, centroidScore{idx: i, score: v.score(query, c)})
	}
	// Selection of the top-nprobe clusters, score-desc, tie-break by index.
	for i := 0; i < len(scored) && i < nprobe; i++ {
		maxIdx := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].score > scored[maxIdx].score ||
				(scored[j].score == scored[maxIdx].score && scored[j].idx < scored[maxIdx].idx) {
				maxIdx = j
			}
		}
		scored[i], scored[maxIdx] = scored[maxIdx], scored[i]
	}
	if nprobe > len(scored) {
		nprobe = len(scored)
	}

	var results []Result
	for i := 0; i < nprobe; i++ {
		for _, e := range v.clusters[scored[i].idx] {
			results = append(results, Result{ID: e.id, Score: v.score(query, e.vector)})
		}
	}
	sortResults(results)
	return topK(results, k), nil
}

// kmeans runs kmeansRestarts independent k-means++ initializations
// concurrently (via errgroup, one of this engine's domain dependencies) and
// keeps the lowest-inertia result, with a fixed RNG seed for
// reproducibility across Build calls.
func (v *IVF) kmeans(vectors [][]float32, k int) [][]float32 {
	if k >= len(vectors) {
		return identityCentroids(vectors, k)
	}

	type attempt struct {
		centroids [][]float32
		inertia   float64
	}
	attempts := make([]attempt, kmeansRestarts)

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < kmeansRestarts; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(kmeansSeed + int64(i)))
			centroids := kmeansPlusPlusInit(vectors, k, rng, v.score)
			centroids, inertia := lloyd(vectors, centroids, kmeansMaxIters, v.score)
			attempts[i] = attempt{centroids: centroids, inertia: inertia}
			return nil
		})
	}
	_ = g.Wait()

	best := attempts[0]
	for _, a := range attempts[1:] {
		if a.inertia < best.inertia {
			best = a
		}
	}
	return best.centroids
}

func identityCentroids(vectors [][]float32, k int) [][]float32 {
	out := make([][]float32, 0, k)
	for i := 0; i < k && i < len(vectors); i++ {
		c := make([]float32, len(vectors[i]))
		copy(c, vectors[i])
		out = append(out, c)
	}
	return out
}

// kmeansPlusPlusInit seeds k centroids with probability proportional to
// squared distance from the nearest already-chosen centroid.
func kmeansPlusPlusInit(vectors [][]float32, k int, rng *rand.Rand, score metric.Func) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, 0, k)

	first := make([]float32, dim)
	copy(first, vectors[rng.Intn(len(vectors))])
	centroids = append(centroids, first)

	for len(centroids) < k {
		dists := make([]float64, len(vectors))
		var total float64
		for i, vec := range vectors {
			minD := math.Inf(1)
			for _, c := range centroids {
				d := euclideanSq(vec, c)
				if d < minD {
					minD = d
				}
			}
			dists[i] = minD
			total += minD
		}
		if total == 0 {
			idx := rng.Intn(len(vectors))
			c := make([]float32, dim)
			copy(c, vectors[idx])
			centroids = append(centroids, c)
			continue
		}
		r := rng.Float64() * total
		var cum float64
		chosen := len(vectors) - 1
		for i, d := range dists {
			cum += d
			if cum >= r {
				chosen = i
				break
			}
		}
		c := make([]float32, dim)
		copy(c, vectors[chosen])
		centroids = append(centroids, c)
	}
	return centroids
}

// lloyd runs standard k-means refinement and returns the final centroids
// plus their total inertia (sum of squared distance to assigned centroid).
func lloyd(vectors [][]float32, centroids [][]float32, maxIters int, score metric.Func) ([][]float32, float64) {
	dim := len(vectors[0])
	k := len(centroids)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, vec := range vectors {
			best := 0
			bestD := math.Inf(1)
			for c, centroid := range centroids {
				d := euclideanSq(vec, centroid)
				if d < bestD {
					bestD = d
					best = c
				}
			}
			if assignments[i] != best {
				changed = true
				assignments[i] = best
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for j, val := range vec {
				sums[c][j] += float64(val)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			newCentroid := make([]float32, dim)
			for j := range newCentroid {
				newCentroid[j] = float32(sums[c][j] / float64(counts[c]))
			}
			centroids[c] = newCentroid
		}
	}

	var inertia float64
	for i, vec := range vectors {
		inertia += euclideanSq(vec, centroids[assignments[i]])
	}
	return centroids, inertia
}

func euclideanSq(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
