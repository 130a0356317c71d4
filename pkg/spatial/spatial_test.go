package spatial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/pkg/spatial"
)

func TestLinearIndex_QueryBBoxFindsIntersecting(t *testing.T) {
	idx := spatial.NewLinearIndex()

	idx.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox2D(0, 0, 10, 10)})
	idx.Insert(spatial.Entity{ID: 2, BBox: spatial.NewBBox2D(100, 100, 110, 110)})

	results := idx.QueryBBox(spatial.NewBBox2D(5, 5, 15, 15))
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].ID)
}

func TestLinearIndex_QueryPointMatchesContainingEntities(t *testing.T) {
	idx := spatial.NewLinearIndex()
	idx.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox2D(0, 0, 10, 10)})

	results := idx.QueryPoint([3]float64{5, 5, 0})
	require.Len(t, results, 1)

	none := idx.QueryPoint([3]float64{50, 50, 0})
	assert.Empty(t, none)
}

func TestLinearIndex_NearestOrdersByDistance(t *testing.T) {
	idx := spatial.NewLinearIndex()
	idx.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox2D(10, 10, 10, 10)})
	idx.Insert(spatial.Entity{ID: 2, BBox: spatial.NewBBox2D(1, 1, 1, 1)})
	idx.Insert(spatial.Entity{ID: 3, BBox: spatial.NewBBox2D(5, 5, 5, 5)})

	results, err := idx.Nearest([3]float64{0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint64(2), results[0].ID)
	assert.Equal(t, uint64(3), results[1].ID)
}

func TestLinearIndex_RemoveDropsEntity(t *testing.T) {
	idx := spatial.NewLinearIndex()
	idx.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox2D(0, 0, 1, 1)})

	assert.True(t, idx.Remove(1))
	assert.False(t, idx.Remove(1))
	assert.Equal(t, 0, idx.Len())
}

func TestOctree_QueryBBoxFindsIntersecting(t *testing.T) {
	tree := spatial.NewOctree(spatial.DefaultOctreeConfig())

	tree.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox3D(0, 0, 0, 10, 10, 10)})
	tree.Insert(spatial.Entity{ID: 2, BBox: spatial.NewBBox3D(500, 500, 500, 510, 510, 510)})

	results := tree.QueryBBox(spatial.NewBBox3D(-5, -5, -5, 5, 5, 5))
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].ID)
}

func TestOctree_SubdividesBeyondMaxEntitiesPerNode(t *testing.T) {
	cfg := spatial.OctreeConfig{MaxDepth: 8, MaxEntitiesPerNode: 2, InitialBBox: spatial.NewBBox3D(-100, -100, -100, 100, 100, 100)}
	tree := spatial.NewOctree(cfg)

	for i := uint64(0); i < 20; i++ {
		tree.Insert(spatial.Entity{ID: i, BBox: spatial.NewBBox3D(
			float64(i), float64(i), float64(i),
			float64(i)+1, float64(i)+1, float64(i)+1,
		)})
	}

	assert.Equal(t, 20, tree.Len())

	results := tree.QueryBBox(spatial.NewBBox3D(0, 0, 0, 5, 5, 5))
	assert.NotEmpty(t, results)
}

func TestOctree_QueryPointUsesEpsilonBox(t *testing.T) {
	tree := spatial.NewOctree(spatial.DefaultOctreeConfig())
	tree.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox3D(0, 0, 0, 1, 1, 1)})

	results := tree.QueryPoint([3]float64{0.5, 0.5, 0.5})
	assert.NotEmpty(t, results)
}

func TestOctree_NearestIsUnsupported(t *testing.T) {
	tree := spatial.NewOctree(spatial.DefaultOctreeConfig())
	tree.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox3D(0, 0, 0, 1, 1, 1)})

	results, err := tree.Nearest([3]float64{0, 0, 0}, 1)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, cn.ErrSpatialUnsupported)
}

func TestCachedIndex_RepeatedQueryHitsCache(t *testing.T) {
	inner := spatial.NewLinearIndex()
	inner.Insert(spatial.Entity{ID: 1, BBox: spatial.NewBBox2D(0, 0, 10, 10)})

	cached, err := spatial.NewCachedIndex(inner, 16)
	require.NoError(t, err)

	bbox := spatial.NewBBox2D(0, 0, 20, 20)

	first := cached.QueryBBox(bbox)
	second := cached.QueryBBox(bbox)
	assert.Equal(t, first, second)

	cached.Insert(spatial.Entity{ID: 2, BBox: spatial.NewBBox2D(5, 5, 6, 6)})

	third := cached.QueryBBox(bbox)
	assert.Len(t, third, 2)
}

func TestBBox_IntersectsAndContains(t *testing.T) {
	a := spatial.NewBBox2D(0, 0, 10, 10)
	b := spatial.NewBBox2D(5, 5, 15, 15)
	c := spatial.NewBBox2D(100, 100, 110, 110)

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
	assert.True(t, a.Contains([3]float64{5, 5, 0}))
	assert.False(t, a.Contains([3]float64{50, 50, 0}))
}
