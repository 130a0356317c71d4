package spatial

import (
	"sync"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// OctreeConfig bounds subdivision depth and per-node entity count before
// a node splits into its eight children.
type OctreeConfig struct {
	MaxDepth           int
	MaxEntitiesPerNode int
	InitialBBox        BBox
}

// DefaultOctreeConfig matches the depth/fanout the reference volumetric
// index used for typical CAD scene extents.
func DefaultOctreeConfig() OctreeConfig {
	return OctreeConfig{
		MaxDepth:           8,
		MaxEntitiesPerNode: 8,
		InitialBBox:        NewBBox3D(-1000, -1000, -1000, 1000, 1000, 1000),
	}
}

type octreeNode struct {
	bbox     BBox
	entities []Entity
	children []*octreeNode
	depth    int
	cfg      OctreeConfig
}

func newOctreeNode(bbox BBox, depth int, cfg OctreeConfig) *octreeNode {
	return &octreeNode{bbox: bbox, depth: depth, cfg: cfg}
}

func (n *octreeNode) insert(entity Entity) {
	if n.children == nil && len(n.entities) < n.cfg.MaxEntitiesPerNode {
		n.entities = append(n.entities, entity)
		return
	}

	if n.depth >= n.cfg.MaxDepth {
		n.entities = append(n.entities, entity)
		return
	}

	if n.children == nil {
		n.subdivide()
	}

	for _, child := range n.children {
		if child.bbox.Intersects(entity.BBox) {
			child.insert(entity)
		}
	}
}

func (n *octreeNode) subdivide() {
	midX := (n.bbox.Min[0] + n.bbox.Max[0]) / 2
	midY := (n.bbox.Min[1] + n.bbox.Max[1]) / 2
	midZ := (n.bbox.Min[2] + n.bbox.Max[2]) / 2

	childDepth := n.depth + 1

	octants := [8]BBox{
		NewBBox3D(n.bbox.Min[0], n.bbox.Min[1], n.bbox.Min[2], midX, midY, midZ),
		NewBBox3D(midX, n.bbox.Min[1], n.bbox.Min[2], n.bbox.Max[0], midY, midZ),
		NewBBox3D(n.bbox.Min[0], midY, n.bbox.Min[2], midX, n.bbox.Max[1], midZ),
		NewBBox3D(midX, midY, n.bbox.Min[2], n.bbox.Max[0], n.bbox.Max[1], midZ),
		NewBBox3D(n.bbox.Min[0], n.bbox.Min[1], midZ, midX, midY, n.bbox.Max[2]),
		NewBBox3D(midX, n.bbox.Min[1], midZ, n.bbox.Max[0], midY, n.bbox.Max[2]),
		NewBBox3D(n.bbox.Min[0], midY, midZ, midX, n.bbox.Max[1], n.bbox.Max[2]),
		NewBBox3D(midX, midY, midZ, n.bbox.Max[0], n.bbox.Max[1], n.bbox.Max[2]),
	}

	n.children = make([]*octreeNode, 8)
	for i, bbox := range octants {
		n.children[i] = newOctreeNode(bbox, childDepth, n.cfg)
	}

	existing := n.entities
	n.entities = nil

	for _, e := range existing {
		n.insert(e)
	}
}

func (n *octreeNode) queryBBox(bbox BBox, results *[]Entity) {
	if !n.bbox.Intersects(bbox) {
		return
	}

	for _, e := range n.entities {
		if e.BBox.Intersects(bbox) {
			*results = append(*results, e)
		}
	}

	for _, child := range n.children {
		child.queryBBox(bbox, results)
	}
}

// collectIDs gathers the IDs of every entity under n. An entity whose box
// straddles octant boundaries is stored in several children, so IDs are
// collected into a set rather than counted per node.
func (n *octreeNode) collectIDs(seen map[uint64]struct{}) {
	for _, e := range n.entities {
		seen[e.ID] = struct{}{}
	}

	for _, child := range n.children {
		child.collectIDs(seen)
	}
}

// Octree is a volumetric subdivision index suited to dense 3D CAD
// scenes where a flat scan over every entity is too slow.
type Octree struct {
	mu    sync.RWMutex
	root  *octreeNode
	cfg   OctreeConfig
	stats Stats
}

// NewOctree builds an octree rooted at cfg.InitialBBox.
func NewOctree(cfg OctreeConfig) *Octree {
	return &Octree{root: newOctreeNode(cfg.InitialBBox, 0, cfg), cfg: cfg}
}

func (o *Octree) Insert(entity Entity) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.root.insert(entity)
	o.stats.TotalEntities++
}

// Remove is unsupported: the reference volumetric index never
// implemented deletion either, since entities are rebuilt per scene
// edit rather than mutated in place.
func (o *Octree) Remove(_ uint64) bool { return false }

func (o *Octree) QueryBBox(bbox BBox) []Entity {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stats.QueryCount++

	var results []Entity
	o.root.queryBBox(bbox, &results)

	return results
}

func (o *Octree) QueryPoint(point [3]float64) []Entity {
	const epsilon = 0.0001

	bbox := NewBBox3D(
		point[0]-epsilon, point[1]-epsilon, point[2]-epsilon,
		point[0]+epsilon, point[1]+epsilon, point[2]+epsilon,
	)

	return o.QueryBBox(bbox)
}

// Nearest is unsupported: the reference volumetric index never
// implements nearest-neighbor search for its octree backend either,
// since an unbounded tree walk defeats the point of subdividing space
// in the first place. Callers needing nearest-k should use a
// LinearIndex, or a CachedIndex wrapping one.
func (o *Octree) Nearest(_ [3]float64, _ int) ([]Entity, error) {
	return nil, cn.ErrSpatialUnsupported
}

func (o *Octree) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.stats
}

func (o *Octree) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	seen := make(map[uint64]struct{})
	o.root.collectIDs(seen)

	return len(seen)
}
