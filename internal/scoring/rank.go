package scoring

import "sort"

// Candidate is a scored talent waiting to be ranked.
type Candidate struct {
	TalentID int64
	Result   Result
}

// Rank sorts candidates by descending score, ties broken by ascending talent id,
// and keeps at most topN of them. A non-positive topN keeps everything.
func Rank(candidates []Candidate, topN int) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Result.Score != ranked[j].Result.Score {
			return ranked[i].Result.Score > ranked[j].Result.Score
		}
		return ranked[i].TalentID < ranked[j].TalentID
	})

	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
