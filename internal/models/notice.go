package models

import "fmt"

// NoticeKind classifies a non-fatal condition
type NoticeKind string

const (
	NoticeCRSAssumed         NoticeKind = "crs_assumed"
	NoticeFeatureSkipped     NoticeKind = "feature_skipped"
	NoticeRegionNotFound     NoticeKind = "region_not_found"
	NoticeRegionUnfilterable NoticeKind = "region_unfilterable"
	NoticeTierInconclusive   NoticeKind = "tier_inconclusive"
	NoticeLayerChoice        NoticeKind = "layer_choice"
	NoticeNoMatchDebug       NoticeKind = "no_match_debug"
)

// Notice is a warning-class signal surfaced to the caller while processing
// continues with a fallback
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Noticef builds a notice with a formatted message
func Noticef(kind NoticeKind, format string, args ...any) Notice {
	return Notice{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (n Notice) String() string {
	return string(n.Kind) + ": " + n.Message
}
