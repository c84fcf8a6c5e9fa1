// Package scoring computes the 0-100 compatibility score between a talent and an offre.
package scoring

import (
	"math"
	"strings"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// Weights of the skill coverage components
const (
	requiredWeight = 0.8
	desiredWeight  = 0.2
)

// Weights of the experience-gated variant
const (
	skillBlendWeight      = 0.7
	experienceBlendWeight = 0.3
	penaltyPerMissingYear = 20.0
)

// Input holds everything the score depends on.
type Input struct {
	TalentSkills   []string
	RequiredSkills []string
	DesiredSkills  []string
	TalentYears    *int
	MinYears       *int
}

// Result is a computed score with the skill coverage detail.
// Skill names keep the spelling declared on the offre.
type Result struct {
	Score           int      `json:"score"`
	MatchedRequired []string `json:"matchedRequired"`
	MatchedDesired  []string `json:"matchedDesired"`
	MissingRequired []string `json:"missingRequired"`
}

// NormalizeSkill folds a skill name for comparison.
func NormalizeSkill(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

// Score computes the skill coverage score: required coverage counts for 80%
// and desired coverage for 20%. An empty list gives full credit for its part.
func Score(in Input) Result {
	res, coverage := skillCoverage(in)
	res.Score = round(coverage * 100)
	return res
}

// ScoreWithExperience blends skill coverage (70%) with an experience term (30%)
// that loses 20 points per year below the offre's floor.
func ScoreWithExperience(in Input) Result {
	res, coverage := skillCoverage(in)
	blended := skillBlendWeight*coverage*100 + experienceBlendWeight*experienceTerm(in.TalentYears, in.MinYears)
	res.Score = round(blended)
	return res
}

// skillCoverage returns the coverage detail and the weighted coverage in [0,1].
func skillCoverage(in Input) (Result, float64) {
	talent := make(map[string]bool, len(in.TalentSkills))
	for _, s := range in.TalentSkills {
		if n := NormalizeSkill(s); n != "" {
			talent[n] = true
		}
	}

	res := Result{
		MatchedRequired: []string{},
		MatchedDesired:  []string{},
		MissingRequired: []string{},
	}

	required := dedupe(in.RequiredSkills)
	for _, s := range required {
		if talent[NormalizeSkill(s)] {
			res.MatchedRequired = append(res.MatchedRequired, s)
		} else {
			res.MissingRequired = append(res.MissingRequired, s)
		}
	}

	desired := dedupe(in.DesiredSkills)
	for _, s := range desired {
		if talent[NormalizeSkill(s)] {
			res.MatchedDesired = append(res.MatchedDesired, s)
		}
	}

	requiredCoverage := 1.0
	if len(required) > 0 {
		requiredCoverage = float64(len(res.MatchedRequired)) / float64(len(required))
	}
	desiredCoverage := 1.0
	if len(desired) > 0 {
		desiredCoverage = float64(len(res.MatchedDesired)) / float64(len(desired))
	}

	return res, requiredWeight*requiredCoverage + desiredWeight*desiredCoverage
}

// experienceTerm returns 100 when the floor is met or unknown.
func experienceTerm(talentYears, minYears *int) float64 {
	if minYears == nil || *minYears <= 0 {
		return 100
	}
	years := 0
	if talentYears != nil {
		years = *talentYears
	}
	short := *minYears - years
	if short <= 0 {
		return 100
	}
	return math.Max(0, 100-penaltyPerMissingYear*float64(short))
}

// dedupe drops blank and repeated skills, keeping the first spelling.
func dedupe(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		n := NormalizeSkill(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func round(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// ForPair scores a talent against an offre, using the experience-gated variant when gated is set.
func ForPair(t *types.Talent, o *types.Offre, gated bool) Result {
	in := Input{
		TalentSkills:   t.Skills,
		RequiredSkills: o.RequiredSkills,
		DesiredSkills:  o.DesiredSkills,
		TalentYears:    t.YearsExperience,
		MinYears:       o.MinExperience,
	}
	if gated {
		return ScoreWithExperience(in)
	}
	return Score(in)
}
