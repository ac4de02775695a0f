package zonelookup

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
)

const (
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// minExtent keeps degenerate bounds (zero width or height) indexable
	minExtent = 1e-6
)

// indexedFeature wraps a feature position for R-tree indexing
type indexedFeature struct {
	pos  int
	rect *rtreego.Rect
}

func (f *indexedFeature) Bounds() *rtreego.Rect {
	return f.rect
}

// featureIndex is an R-tree of feature bounds in the collection CRS
type featureIndex struct {
	tree *rtreego.Rtree
	mu   sync.RWMutex
	size int
}

// buildIndex indexes every feature with a geometry. Features whose bounds
// cannot be indexed are returned as notices and left to the exhaustive tier.
func buildIndex(features []models.Feature) (*featureIndex, []models.Notice) {
	idx := &featureIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}

	var notices []models.Notice
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for pos, f := range features {
		if f.Geometry == nil {
			notices = append(notices, models.Noticef(models.NoticeFeatureSkipped, "feature %d not indexed: missing geometry", f.Index))
			continue
		}
		rect, err := boundRect(f.Geometry.Bound(), 0)
		if err != nil {
			notices = append(notices, models.Noticef(models.NoticeFeatureSkipped, "feature %d not indexed: %v", f.Index, err))
			continue
		}
		idx.tree.Insert(&indexedFeature{pos: pos, rect: rect})
		idx.size++
	}
	return idx, notices
}

// search returns the positions of features whose bounds come within radius
// of p, in collection order
func (idx *featureIndex) search(p orb.Point, radius float64) ([]int, error) {
	rect, err := boundRect(orb.Bound{Min: p, Max: p}, math.Max(radius, minExtent))
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	results := idx.tree.SearchIntersect(rect)
	idx.mu.RUnlock()

	positions := make([]int, 0, len(results))
	for _, r := range results {
		positions = append(positions, r.(*indexedFeature).pos)
	}
	sort.Ints(positions)
	return positions, nil
}

func (idx *featureIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.size
}

func boundRect(b orb.Bound, pad float64) (*rtreego.Rect, error) {
	b = b.Pad(pad)
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite bounds")
		}
	}
	w := math.Max(b.Max[0]-b.Min[0], minExtent)
	h := math.Max(b.Max[1]-b.Min[1], minExtent)
	rect, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}
	return rect, nil
}
