package zonelookup

import (
	"errors"
	"fmt"

	"github.com/ngmaloney/aac-checker/internal/geometry"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
)

var errNoIndex = errors.New("spatial index unavailable")

// exact tests strict containment against the index candidates. Boundary
// points are left to the buffered tier.
func (r *Resolver) exact(q *query) (models.MatchResult, error) {
	p, err := q.point()
	if err != nil {
		return models.NoMatch, err
	}
	if r.index == nil {
		return models.NoMatch, errNoIndex
	}
	candidates, err := r.index.search(p, 0)
	if err != nil {
		return models.NoMatch, err
	}
	return r.firstOf(q, candidates, func(g orb.Geometry) bool {
		return geometry.ContainsStrictly(g, p)
	}), nil
}

// buffered accepts zones within the buffer radius of the point
func (r *Resolver) buffered(q *query) (models.MatchResult, error) {
	p, err := q.point()
	if err != nil {
		return models.NoMatch, err
	}
	if r.index == nil {
		return models.NoMatch, errNoIndex
	}
	candidates, err := r.index.search(p, r.radius)
	if err != nil {
		return models.NoMatch, err
	}
	return r.firstOf(q, candidates, func(g orb.Geometry) bool {
		return geometry.WithinDistance(g, p, r.radius)
	}), nil
}

// exhaustive scans every feature without the index
func (r *Resolver) exhaustive(q *query) (models.MatchResult, error) {
	p, err := q.point()
	if err != nil {
		return models.NoMatch, err
	}
	return r.firstOf(q, nil, func(g orb.Geometry) bool {
		return geometry.ContainsStrictly(g, p)
	}), nil
}

// direct scans every feature, accepting points within the plain tolerance
func (r *Resolver) direct(q *query) (models.MatchResult, error) {
	p, err := q.point()
	if err != nil {
		return models.NoMatch, err
	}
	return r.firstOf(q, nil, func(g orb.Geometry) bool {
		return geometry.WithinDistance(g, p, r.plainRadius)
	}), nil
}

// firstOf returns the first feature, in collection order, accepted by test.
// A nil positions list scans the whole collection. Features that fail are
// skipped with a notice.
func (r *Resolver) firstOf(q *query, positions []int, test func(orb.Geometry) bool) models.MatchResult {
	check := func(f models.Feature) bool {
		ok, err := testFeature(f, test)
		if err != nil {
			q.skip(f, err)
			return false
		}
		return ok
	}

	if positions == nil {
		for _, f := range r.fc.Features {
			if check(f) {
				return models.Match(f.Attributes)
			}
		}
		return models.NoMatch
	}
	for _, pos := range positions {
		if f := r.fc.Features[pos]; check(f) {
			return models.Match(f.Attributes)
		}
	}
	return models.NoMatch
}

func testFeature(f models.Feature, test func(orb.Geometry) bool) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("panic: %v", rec)
		}
	}()
	if err := geometry.Check(f.Geometry); err != nil {
		return false, err
	}
	return test(f.Geometry), nil
}
