// Package zonelookup resolves which AAC zone, if any, contains a point.
//
// Resolution runs an ordered chain of strategies. Each tier either answers,
// reports that it found nothing, or fails; a failure is recorded as a notice
// and the next tier runs. Collections read from GeoPackage or Shapefile use
// an R-tree backed chain (exact, buffered, exhaustive); GeoJSON collections
// use a single direct scan with a small tolerance.
package zonelookup

import (
	"errors"
	"fmt"
	"math"

	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// Tier names a resolution strategy
type Tier string

const (
	TierExact      Tier = "exact"
	TierBuffered   Tier = "buffered"
	TierExhaustive Tier = "exhaustive"
	TierDirect     Tier = "direct"
	TierNone       Tier = ""
)

// metresToDegrees approximates 1 m as 1e-5 degrees (0.001° ≈ 100 m).
// The latitude dependence of longitude degrees is ignored.
const metresToDegrees = 1e-5

// Options tune the resolver
type Options struct {
	BufferMeters       float64 // Radius of the buffered tier
	PlainBufferDegrees float64 // Tolerance of the direct tier for GeoJSON
	Logger             zerolog.Logger
}

// DefaultOptions returns a 100 m buffer and a 0.0001° direct tolerance
func DefaultOptions() Options {
	return Options{
		BufferMeters:       100,
		PlainBufferDegrees: 0.0001,
		Logger:             zerolog.Nop(),
	}
}

// Trace reports how a query was resolved
type Trace struct {
	Tier    Tier // Winning tier, TierNone when nothing matched
	Notices []models.Notice
}

// Strategy is one tier of the resolution chain
type Strategy struct {
	Name Tier
	Run  func(q *query) (models.MatchResult, error)
}

// Resolver answers containment queries against one collection. It never
// modifies the collection and is safe for concurrent use.
type Resolver struct {
	fc           *models.FeatureCollection
	index        *featureIndex
	chain        []Strategy
	toCollection orb.Projection
	radius       float64
	plainRadius  float64
	buildNotices []models.Notice
	log          zerolog.Logger
}

// New builds a resolver for fc. The spatial index is built once here for
// indexed collections.
func New(fc *models.FeatureCollection, opts Options) (*Resolver, error) {
	if fc == nil {
		return nil, errors.New("nil feature collection")
	}
	proj, err := fc.CRS.FromWGS84()
	if err != nil {
		return nil, fmt.Errorf("preparing point reprojection: %w", err)
	}

	r := &Resolver{
		fc:           fc,
		toCollection: proj,
		plainRadius:  opts.PlainBufferDegrees,
		log:          opts.Logger.With().Str("component", "resolver").Logger(),
	}
	r.radius = opts.BufferMeters
	if fc.CRS.IsGeographic() {
		r.radius = opts.BufferMeters * metresToDegrees
	}

	if fc.Indexed() {
		r.index, r.buildNotices = buildIndex(fc.Features)
		r.chain = []Strategy{
			{Name: TierExact, Run: r.exact},
			{Name: TierBuffered, Run: r.buffered},
			{Name: TierExhaustive, Run: r.exhaustive},
		}
	} else {
		r.chain = []Strategy{{Name: TierDirect, Run: r.direct}}
	}

	r.log.Debug().
		Int("features", fc.Len()).
		Str("crs", fc.CRS.String()).
		Bool("indexed", fc.Indexed()).
		Float64("buffer", r.radius).
		Msg("resolver ready")
	return r, nil
}

// Notices returns what happened while building the index
func (r *Resolver) Notices() []models.Notice {
	return append([]models.Notice(nil), r.buildNotices...)
}

// Resolve returns the first zone containing p
func (r *Resolver) Resolve(p models.QueryPoint) models.MatchResult {
	res, _ := r.ResolveTrace(p)
	return res
}

// ResolveTrace resolves p and reports which tier answered
func (r *Resolver) ResolveTrace(p models.QueryPoint) (models.MatchResult, Trace) {
	q := &query{wgs84: p, project: r.toCollection}
	trace := Trace{}
	if r.fc.Len() == 0 {
		return models.NoMatch, trace
	}

	for _, s := range r.chain {
		res, err := runStrategy(s, q)
		if err != nil {
			q.notice(models.Noticef(models.NoticeTierInconclusive, "%s tier inconclusive: %v", s.Name, err))
			r.log.Warn().Err(err).Str("tier", string(s.Name)).Msg("tier inconclusive")
			continue
		}
		if res.Matched {
			trace.Tier = s.Name
			trace.Notices = q.notices
			r.log.Debug().Str("tier", string(s.Name)).Str("point", p.String()).Msg("zone matched")
			return res, trace
		}
	}

	dbg := fmt.Sprintf("point %s (WGS84)", p)
	if pt, err := q.point(); err == nil {
		dbg += fmt.Sprintf(" is (%.3f, %.3f) in %s", pt[0], pt[1], r.fc.CRS)
	}
	q.notice(models.Noticef(models.NoticeNoMatchDebug, "%s, data CRS %s, %d zones", dbg, r.fc.CRS, r.fc.Len()))
	trace.Notices = q.notices
	return models.NoMatch, trace
}

// runStrategy runs one tier, turning a panic into an error
func runStrategy(s Strategy, q *query) (res models.MatchResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = models.NoMatch, fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.Run(q)
}

// query carries one resolution through the chain
type query struct {
	wgs84   models.QueryPoint
	project orb.Projection

	projected orb.Point
	done      bool
	err       error
	notices   []models.Notice
	skipped   map[int]bool
}

// point returns the query point in the collection CRS
func (q *query) point() (orb.Point, error) {
	if q.done {
		return q.projected, q.err
	}
	q.done = true
	if err := q.wgs84.Validate(); err != nil {
		q.err = err
		return orb.Point{}, err
	}
	p := q.project(orb.Point{q.wgs84.Lon, q.wgs84.Lat})
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		q.err = fmt.Errorf("point %s cannot be reprojected", q.wgs84)
		return orb.Point{}, q.err
	}
	q.projected = p
	return p, nil
}

func (q *query) notice(n models.Notice) {
	q.notices = append(q.notices, n)
}

// skip records a per-feature failure once per query
func (q *query) skip(f models.Feature, err error) {
	if q.skipped == nil {
		q.skipped = make(map[int]bool)
	}
	if q.skipped[f.Index] {
		return
	}
	q.skipped[f.Index] = true
	q.notice(models.Noticef(models.NoticeFeatureSkipped, "feature %d skipped: %v", f.Index, err))
}
