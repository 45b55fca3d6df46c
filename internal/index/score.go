package index

import "sort"

// scoreEpsilon absorbs float noise when comparing summed weights.
const scoreEpsilon = 1e-9

// Candidate is a ranked resolution candidate.
type Candidate struct {
	Record Record
	Score  float64
}

// Score sums the weights of rec's tags whose keys appear in tags.
func Score(rec Record, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	wanted := make(map[string]bool, len(tags))
	for _, k := range tags {
		wanted[k] = true
	}

	var score float64
	for _, t := range rec.Tags {
		if wanted[t.Key] {
			score += t.Weight
		}
	}
	return score
}

// Rank scores records against tags and orders them.
//
// With tags the order is score descending; without tags every score is
// zero and the order is recency descending. Ties fall back to recency and
// then primary key.
func Rank(records []Record, tags []string) []Candidate {
	cands := make([]Candidate, len(records))
	for i, rec := range records {
		cands[i] = Candidate{Record: rec, Score: Score(rec, tags)}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if d := a.Score - b.Score; d > scoreEpsilon || d < -scoreEpsilon {
			return d > 0
		}
		if !a.Record.UpdatedAt.Equal(b.Record.UpdatedAt) {
			return a.Record.UpdatedAt.After(b.Record.UpdatedAt)
		}
		return a.Record.PrimaryKey < b.Record.PrimaryKey
	})
	return cands
}
