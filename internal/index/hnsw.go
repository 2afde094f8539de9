// Package index implements an approximate nearest-neighbor index over
// memory vectors using a hierarchical navigable small-world graph.
//
// Nodes live in a flat arena and reference each other by arena position,
// never by pointer. Deletion is logical: removed nodes are tombstoned and
// excluded from results and Len, but their edges stay in place so the
// graph remains navigable. There is no compaction pass; the index is
// rebuilt from the store on process start.
package index

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rulebook-dev/rulebook-memory/internal/vector"
)

// Config holds HNSW construction parameters.
type Config struct {
	Dims           int // vector dimensionality, required
	M              int // max neighbors per node on upper layers
	EfConstruction int // candidate breadth during insertion
	EfSearch       int // candidate breadth during queries
}

// DefaultConfig returns the standard parameters for the given
// dimensionality.
func DefaultConfig(dims int) Config {
	return Config{Dims: dims, M: 16, EfConstruction: 200, EfSearch: 64}
}

// Result is one nearest-neighbor match.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"` // cosine similarity
}

type node struct {
	id        string
	vec       vector.Vector
	level     int
	neighbors [][]int32 // per-layer adjacency, arena positions
	deleted   bool
}

// Index is a thread-safe HNSW graph.
type Index struct {
	mu        sync.RWMutex
	cfg       Config
	nodes     []*node
	byID      map[string]int32
	entry     int32
	maxLevel  int
	live      int
	rng       *rand.Rand
	levelMult float64
}

// New creates an empty index. Zero or negative config fields fall back
// to defaults.
func New(cfg Config) *Index {
	def := DefaultConfig(cfg.Dims)
	if cfg.M <= 0 {
		cfg.M = def.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = def.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = def.EfSearch
	}
	return &Index{
		cfg:       cfg,
		byID:      make(map[string]int32),
		entry:     -1,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		levelMult: 1.0 / math.Log(float64(cfg.M)),
	}
}

// Len returns the number of live (non-tombstoned) vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live
}

// Add inserts a vector under the given id. Re-adding an existing id
// tombstones the old node and inserts the vector fresh.
func (idx *Index) Add(id string, vec vector.Vector) error {
	if len(vec) != idx.cfg.Dims {
		return fmt.Errorf("%w: index wants %d, got %d", vector.ErrDimensionMismatch, idx.cfg.Dims, len(vec))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if pos, ok := idx.byID[id]; ok && !idx.nodes[pos].deleted {
		idx.nodes[pos].deleted = true
		idx.live--
	}

	level := idx.randomLevel()
	n := &node{
		id:        id,
		vec:       append(vector.Vector(nil), vec...),
		level:     level,
		neighbors: make([][]int32, level+1),
	}
	pos := int32(len(idx.nodes))
	idx.nodes = append(idx.nodes, n)
	idx.byID[id] = pos
	idx.live++

	if idx.entry < 0 {
		idx.entry = pos
		idx.maxLevel = level
		return nil
	}

	ep := idx.entry
	// Greedy descent through layers above the new node's level.
	for l := idx.maxLevel; l > level; l-- {
		ep = idx.greedyClosest(vec, ep, l)
	}

	// Link into every layer from min(level, maxLevel) down to 0.
	top := level
	if top > idx.maxLevel {
		top = idx.maxLevel
	}
	eps := []int32{ep}
	for l := top; l >= 0; l-- {
		cands := idx.searchLayer(vec, eps, idx.cfg.EfConstruction, l)
		selected := idx.selectNeighbors(n.vec, cands, idx.cfg.M)
		n.neighbors[l] = selected

		maxConn := idx.cfg.M
		if l == 0 {
			maxConn = idx.cfg.M * 2
		}
		for _, other := range selected {
			o := idx.nodes[other]
			o.neighbors[l] = append(o.neighbors[l], pos)
			if len(o.neighbors[l]) > maxConn {
				o.neighbors[l] = idx.selectNeighbors(o.vec, idx.asCandidates(o.vec, o.neighbors[l]), maxConn)
			}
		}

		eps = cands
		if len(eps) == 0 {
			eps = []int32{ep}
		}
	}

	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entry = pos
	}
	return nil
}

// Search returns up to k approximate nearest live ids with cosine
// similarity scores, best first.
func (idx *Index) Search(vec vector.Vector, k int) ([]Result, error) {
	if len(vec) != idx.cfg.Dims {
		return nil, fmt.Errorf("%w: index wants %d, got %d", vector.ErrDimensionMismatch, idx.cfg.Dims, len(vec))
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entry < 0 || idx.live == 0 {
		return nil, nil
	}

	ep := idx.entry
	for l := idx.maxLevel; l > 0; l-- {
		ep = idx.greedyClosest(vec, ep, l)
	}

	ef := idx.cfg.EfSearch
	if ef < k {
		ef = k
	}
	cands := idx.searchLayer(vec, []int32{ep}, ef, 0)

	results := make([]Result, 0, k)
	for _, pos := range cands {
		n := idx.nodes[pos]
		if n.deleted {
			continue
		}
		results = append(results, Result{ID: n.id, Score: dot(vec, n.vec)})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Remove tombstones the node for id. Returns false if the id is not
// present or already removed.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, ok := idx.byID[id]
	if !ok || idx.nodes[pos].deleted {
		return false
	}
	idx.nodes[pos].deleted = true
	idx.live--
	return true
}

// randomLevel samples a layer from an exponential distribution.
func (idx *Index) randomLevel() int {
	return int(-math.Log(idx.rng.Float64()) * idx.levelMult)
}

// greedyClosest walks layer l from start, always moving to the neighbor
// closest to vec, until no neighbor improves.
func (idx *Index) greedyClosest(vec vector.Vector, start int32, l int) int32 {
	cur := start
	best := dot(vec, idx.nodes[cur].vec)
	for {
		improved := false
		n := idx.nodes[cur]
		if l <= n.level {
			for _, nb := range n.neighbors[l] {
				if s := dot(vec, idx.nodes[nb].vec); s > best {
					best = s
					cur = nb
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer is the beam search at one layer: it refines a set of up
// to ef candidates around the entry points. Tombstoned nodes still act
// as waypoints; callers filter them from final results.
func (idx *Index) searchLayer(vec vector.Vector, eps []int32, ef, l int) []int32 {
	visited := make(map[int32]bool, ef*4)
	var frontier maxHeap // best candidate first
	var found minHeap    // worst kept result first, capped at ef

	for _, ep := range eps {
		if visited[ep] {
			continue
		}
		visited[ep] = true
		s := dot(vec, idx.nodes[ep].vec)
		frontier.push(scored{ep, s})
		found.push(scored{ep, s})
	}

	for frontier.len() > 0 {
		c := frontier.pop()
		if found.len() >= ef && c.score < found.peek().score {
			break
		}
		n := idx.nodes[c.pos]
		if l > n.level {
			continue
		}
		for _, nb := range n.neighbors[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			s := dot(vec, idx.nodes[nb].vec)
			if found.len() < ef || s > found.peek().score {
				frontier.push(scored{nb, s})
				found.push(scored{nb, s})
				if found.len() > ef {
					found.pop()
				}
			}
		}
	}

	out := found.drainDescending()
	positions := make([]int32, len(out))
	for i, s := range out {
		positions[i] = s.pos
	}
	return positions
}

// selectNeighbors applies the diversity heuristic: walking candidates
// best-first, a candidate is kept only if it is closer to the new
// vector than to every neighbor already kept. This stops the adjacency
// list collapsing into near-duplicates of one region.
func (idx *Index) selectNeighbors(vec vector.Vector, cands []int32, m int) []int32 {
	selected := make([]int32, 0, m)
	for _, c := range cands {
		if len(selected) == m {
			break
		}
		cv := idx.nodes[c].vec
		toQuery := dot(vec, cv)
		keep := true
		for _, s := range selected {
			if dot(cv, idx.nodes[s].vec) > toQuery {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		}
	}
	return selected
}

// asCandidates orders positions by similarity to vec, best first.
func (idx *Index) asCandidates(vec vector.Vector, positions []int32) []int32 {
	var h minHeap
	for _, p := range positions {
		h.push(scored{p, dot(vec, idx.nodes[p].vec)})
	}
	out := h.drainDescending()
	ordered := make([]int32, len(out))
	for i, s := range out {
		ordered[i] = s.pos
	}
	return ordered
}

func dot(a, b vector.Vector) float64 {
	var d float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
	}
	return d
}
