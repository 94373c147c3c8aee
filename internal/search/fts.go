package search

import "strings"

// FTSQuery compiles the positive half of a parsed query into an FTS5
// MATCH expression. Negated terms are deliberately excluded: the index
// produces a candidate superset and Match does the final filtering, so
// a file is never lost to index-side negation quirks. Returns "" when
// the query has no positive terms.
func (q ParsedQuery) FTSQuery() string {
	if !q.HasPositive() {
		return ""
	}
	parts := make([]string, 0, len(q.Groups))
	for _, group := range q.Groups {
		alts := make([]string, 0, len(group))
		for _, t := range group {
			alts = append(alts, ftsTerm(t))
		}
		if len(alts) == 1 {
			parts = append(parts, alts[0])
		} else {
			parts = append(parts, "("+strings.Join(alts, " OR ")+")")
		}
	}
	return strings.Join(parts, " AND ")
}

// ftsTerm renders one term as a quoted FTS5 string, which sidesteps
// bareword syntax restrictions and makes multi-word phrases contiguous.
func ftsTerm(t Term) string {
	v := strings.ReplaceAll(t.Value, `"`, "")
	s := `"` + v + `"`
	if t.Prefix {
		s += "*"
	}
	return s
}
