package render

import "github.com/ngmaloney/aac-checker/internal/models"

// IsSame reports whether candidate looks like the matched zone: every key of
// matched that candidate also has (except "geometry") must render to the
// same string. Keys missing from candidate are ignored, so unrelated zones
// sharing the compared values also qualify.
func IsSame(candidate, matched models.Attributes) bool {
	for _, p := range matched.Pairs() {
		if p.Key == "geometry" {
			continue
		}
		v, ok := candidate.Get(p.Key)
		if !ok {
			continue
		}
		if v.String() != p.Value.String() {
			return false
		}
	}
	return true
}

// Highlighter returns the predicate deciding which features are drawn with
// the highlight style
func Highlighter(res models.MatchResult) func(models.Attributes) bool {
	if !res.Matched || res.Attributes == nil {
		return func(models.Attributes) bool { return false }
	}
	matched := *res.Attributes
	return func(candidate models.Attributes) bool {
		return IsSame(candidate, matched)
	}
}
