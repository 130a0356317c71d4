// Package spatial provides bounding-box, point, and nearest-neighbor
// queries over CAD entities using either a LinearIndex (a brute-force
// scan; no R-tree is implemented) or an Octree, selectable per index
// instance.
package spatial

import (
	"math"
	"sort"
	"sync"
)

// BBox is an axis-aligned bounding box in 3D (z is 0 for 2D entities).
type BBox struct {
	Min [3]float64
	Max [3]float64
}

// NewBBox2D builds a 2D box with z pinned to 0.
func NewBBox2D(minX, minY, maxX, maxY float64) BBox {
	return BBox{Min: [3]float64{minX, minY, 0}, Max: [3]float64{maxX, maxY, 0}}
}

// NewBBox3D builds a fully 3D box.
func NewBBox3D(minX, minY, minZ, maxX, maxY, maxZ float64) BBox {
	return BBox{Min: [3]float64{minX, minY, minZ}, Max: [3]float64{maxX, maxY, maxZ}}
}

// Intersects reports whether b and other overlap on every axis.
func (b BBox) Intersects(other BBox) bool {
	for i := 0; i < 3; i++ {
		if b.Min[i] > other.Max[i] || b.Max[i] < other.Min[i] {
			return false
		}
	}

	return true
}

// Contains reports whether point lies within b, inclusive of the faces.
func (b BBox) Contains(point [3]float64) bool {
	for i := 0; i < 3; i++ {
		if point[i] < b.Min[i] || point[i] > b.Max[i] {
			return false
		}
	}

	return true
}

// Center returns the box's midpoint, used for nearest-neighbor distance.
func (b BBox) Center() [3]float64 {
	return [3]float64{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Entity is a single item placed into a spatial index.
type Entity struct {
	ID       uint64
	BBox     BBox
	Metadata map[string]string
}

// Stats tracks cumulative index activity.
type Stats struct {
	TotalEntities uint64
	QueryCount    uint64
}

func distance(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]

	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Index is the common query surface both backends implement.
type Index interface {
	Insert(entity Entity)
	Remove(id uint64) bool
	QueryBBox(bbox BBox) []Entity
	QueryPoint(point [3]float64) []Entity
	Nearest(point [3]float64, maxCount int) ([]Entity, error)
	Stats() Stats
	Len() int
}

// LinearIndex is a flat, unindexed list of entities. It's the R-tree
// substitute: no pack library ships an R-tree, so bbox/point/nearest
// queries here are O(n) brute-force scans, which is correct for the CAD
// scene sizes (tens of thousands of entities) this system targets.
type LinearIndex struct {
	mu       sync.RWMutex
	entities map[uint64]Entity
	stats    Stats
}

// NewLinearIndex returns an empty index.
func NewLinearIndex() *LinearIndex {
	return &LinearIndex{entities: make(map[uint64]Entity)}
}

func (idx *LinearIndex) Insert(entity Entity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.entities[entity.ID]; !exists {
		idx.stats.TotalEntities++
	}

	idx.entities[entity.ID] = entity
}

func (idx *LinearIndex) Remove(id uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.entities[id]; !exists {
		return false
	}

	delete(idx.entities, id)
	idx.stats.TotalEntities--

	return true
}

func (idx *LinearIndex) QueryBBox(bbox BBox) []Entity {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.stats.QueryCount++

	var results []Entity
	for _, e := range idx.entities {
		if e.BBox.Intersects(bbox) {
			results = append(results, e)
		}
	}

	return results
}

func (idx *LinearIndex) QueryPoint(point [3]float64) []Entity {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.stats.QueryCount++

	var results []Entity
	for _, e := range idx.entities {
		if e.BBox.Contains(point) {
			results = append(results, e)
		}
	}

	return results
}

// Nearest returns the maxCount entities closest to point, nearest
// first. LinearIndex supports it directly since it already holds every
// entity in memory.
func (idx *LinearIndex) Nearest(point [3]float64, maxCount int) ([]Entity, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.stats.QueryCount++

	all := make([]Entity, 0, len(idx.entities))
	for _, e := range idx.entities {
		all = append(all, e)
	}

	sort.Slice(all, func(i, j int) bool {
		return distance(point, all[i].BBox.Center()) < distance(point, all[j].BBox.Center())
	})

	if maxCount >= 0 && maxCount < len(all) {
		all = all[:maxCount]
	}

	return all, nil
}

func (idx *LinearIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.stats
}

func (idx *LinearIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entities)
}
