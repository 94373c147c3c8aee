package search

import "strings"

// Term is one matchable unit of a parsed query.
type Term struct {
	Value  string `json:"value"`
	Phrase bool   `json:"phrase,omitempty"`
	Prefix bool   `json:"prefix,omitempty"`
}

// Matches reports whether the term matches a single normalized keyword.
// A phrase also matches when it appears inside a multi-word keyword as a
// contiguous word sequence.
func (t Term) Matches(keyword string) bool {
	if t.Prefix {
		return strings.HasPrefix(keyword, t.Value)
	}
	if keyword == t.Value {
		return true
	}
	if t.Phrase {
		return strings.Contains(" "+keyword+" ", " "+t.Value+" ")
	}
	return false
}

// matchesAny reports whether any keyword in the set satisfies the term.
func (t Term) matchesAny(keywords []string) bool {
	for _, kw := range keywords {
		if t.Matches(kw) {
			return true
		}
	}
	return false
}

// Group is a disjunction: a file satisfies the group if any of its
// terms match. A single-term group is an ordinary required term.
type Group []Term

// ParsedQuery is the immutable result of parsing one query string.
// Groups are conjoined (every group must be satisfied); Not terms
// subtract from the result regardless of position in the input.
type ParsedQuery struct {
	Groups []Group `json:"groups,omitempty"`
	Not    []Term  `json:"not,omitempty"`
}

// IsEmpty reports whether the query constrains nothing.
func (q ParsedQuery) IsEmpty() bool {
	return len(q.Groups) == 0 && len(q.Not) == 0
}

// HasPositive reports whether the query has at least one required term.
func (q ParsedQuery) HasPositive() bool {
	return len(q.Groups) > 0
}

// Match evaluates the query against a file's normalized keyword set.
func (q ParsedQuery) Match(keywords []string) bool {
	for _, group := range q.Groups {
		satisfied := false
		for _, t := range group {
			if t.matchesAny(keywords) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	for _, t := range q.Not {
		if t.matchesAny(keywords) {
			return false
		}
	}
	return true
}

// Terms returns the de-duplicated positive term set, used for keyword
// suggestions and highlighting.
func (q ParsedQuery) Terms() []Term {
	seen := make(map[Term]bool)
	var out []Term
	for _, group := range q.Groups {
		for _, t := range group {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// token is a lexed unit before grouping: a term, or an operator.
type token struct {
	term    Term
	negated bool
	isOR    bool
}

// Parse turns a raw query string into a ParsedQuery. It is total:
// malformed input degrades to the most permissive valid interpretation
// rather than failing. An unmatched double quote is treated as a
// literal character; AND is accepted as a no-op; OR binds its adjacent
// positive terms into a disjunction, greedily left to right; a leading
// "-" negates a term, and negated terms never join a disjunction.
func Parse(raw string) ParsedQuery {
	tokens := lex(raw)

	var q ParsedQuery
	orPending := false
	lastPositive := false // last consumed term went into Groups

	for _, tok := range tokens {
		if tok.isOR {
			// OR only holds between two positive terms.
			orPending = lastPositive
			continue
		}
		if tok.negated {
			q.Not = appendTerm(q.Not, tok.term)
			orPending = false
			lastPositive = false
			continue
		}
		if orPending && len(q.Groups) > 0 {
			last := len(q.Groups) - 1
			q.Groups[last] = Group(appendTerm([]Term(q.Groups[last]), tok.term))
		} else {
			q.Groups = append(q.Groups, Group{tok.term})
		}
		orPending = false
		lastPositive = true
	}
	return q
}

func appendTerm(terms []Term, t Term) []Term {
	for _, have := range terms {
		if have == t {
			return terms
		}
	}
	return append(terms, t)
}

// lex splits the raw query into term and operator tokens. A quoted span
// is one phrase token; otherwise tokens are maximal runs of
// non-whitespace.
func lex(raw string) []token {
	var tokens []token
	i := 0
	for i < len(raw) {
		if isSpace(raw[i]) {
			i++
			continue
		}

		negated := false
		if raw[i] == '-' && i+1 < len(raw) && !isSpace(raw[i+1]) {
			negated = true
			i++
		}

		if raw[i] == '"' {
			if end := strings.IndexByte(raw[i+1:], '"'); end >= 0 {
				content := raw[i+1 : i+1+end]
				i += end + 2
				prefix := false
				if i < len(raw) && raw[i] == '*' {
					prefix = true
					i++
				}
				// Skip the remainder of the run the quote was glued to.
				for i < len(raw) && !isSpace(raw[i]) {
					i++
				}
				if value := NormalizeKeyword(content); value != "" {
					tokens = append(tokens, token{
						term:    Term{Value: value, Phrase: true, Prefix: prefix},
						negated: negated,
					})
				}
				continue
			}
			// Unmatched quote: fall through and treat it literally.
		}

		start := i
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		word := raw[start:i]

		// A leading "-" already claimed this token as a term, so
		// "-and" and "-or" are ordinary negated terms.
		if !negated {
			if strings.EqualFold(word, "AND") {
				continue
			}
			if strings.EqualFold(word, "OR") {
				tokens = append(tokens, token{isOR: true})
				continue
			}
		}

		prefix := false
		if strings.HasSuffix(word, "*") && len(word) > 1 {
			prefix = true
			word = strings.TrimSuffix(word, "*")
		}
		if value := NormalizeKeyword(word); value != "" {
			tokens = append(tokens, token{
				term:    Term{Value: value, Prefix: prefix},
				negated: negated,
			})
		}
	}
	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
