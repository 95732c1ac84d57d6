package entity

import (
	"github.com/BaSui01/intelflow/types"
)

// 评分权重。质量由抽取方式决定，权威度由来源渠道决定，
// 多提供商佐证按 0.1/家 递增。
const (
	qualitySnippet    = 0.5
	qualityStructured = 0.8

	authoritySearch     = 0.70
	authorityExtraction = 0.85
	authorityDirectory  = 0.95

	corroborationStep = 0.1
)

// Scorer computes entity confidence from the backing source set. The score
// is a pure function of that set: same sources in, same confidence out,
// regardless of merge order or repetition.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score returns the confidence for an entity backed by sources. Entities
// with no sources score zero; they should never reach a response.
func (s *Scorer) Score(sources []types.SourceDocument) float64 {
	if len(sources) == 0 {
		return 0
	}

	quality := qualitySnippet
	authority := 0.0
	providers := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src.Method == types.MethodStructured {
			quality = qualityStructured
		}
		if a := originAuthority(src.Origin); a > authority {
			authority = a
		}
		if src.Provider != "" {
			providers[src.Provider] = struct{}{}
		}
	}

	boost := 1.0
	if n := len(providers); n > 1 {
		boost += corroborationStep * float64(n-1)
	}

	confidence := quality * authority * boost
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// originAuthority maps a source origin to its authority weight. Unknown
// origins weigh like search hits so legacy documents never score zero.
func originAuthority(o types.SourceOrigin) float64 {
	switch o {
	case types.OriginDirectory:
		return authorityDirectory
	case types.OriginExtraction:
		return authorityExtraction
	default:
		return authoritySearch
	}
}
