package shop

import (
	"sort"
	"strings"
	"unicode"
)

// Fuzzy rank tiers, highest first. Within a tier the score still varies with
// match quality (length bonuses, similarity), so tiers must not overlap.
const (
	scoreExact     = 1000
	scoreCompact   = 900
	scoreContains  = 700
	scoreCompactIn = 600
	scoreTokens    = 400
	scoreDistance  = 300

	// Minimum levenshtein similarity ratio for the fallback tier.
	minSimilarity = 0.55
)

// MatchScore scores a product name against a free-text query. Zero means the
// candidate is excluded. An empty query passes everything with a unit score,
// so an empty search box behaves like no search at all.
func MatchScore(name, query string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 1
	}
	lowerName := strings.ToLower(strings.TrimSpace(name))

	if lowerName == query {
		return scoreExact
	}

	compactName := compact(lowerName)
	compactQuery := compact(query)
	if compactQuery != "" && compactName == compactQuery {
		return scoreCompact + len(compactQuery)
	}

	if strings.Contains(lowerName, query) {
		return scoreContains + len(query)
	}
	if compactQuery != "" && strings.Contains(compactName, compactQuery) {
		return scoreCompactIn + len(compactQuery)
	}

	if n := tokenPrefixMatch(lowerName, query); n > 0 {
		return scoreTokens + 10*n
	}

	if sim := similarity(compactQuery, compactName); sim >= minSimilarity {
		return int(scoreDistance * sim)
	}
	return 0
}

// RankProducts filters and orders candidates by descending score; ties break
// on name ascending. A blank query keeps the candidates in their given order,
// so an empty search box never reorders a caller's default sort. Pagination
// happens after ranking, never before.
func RankProducts(query string, candidates []Product) []Product {
	if strings.TrimSpace(query) == "" {
		out := make([]Product, len(candidates))
		copy(out, candidates)
		return out
	}

	type scored struct {
		p     Product
		score int
	}
	kept := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		if s := MatchScore(p.Name, query); s > 0 {
			kept = append(kept, scored{p: p, score: s})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].p.Name < kept[j].p.Name
	})
	out := make([]Product, len(kept))
	for i, s := range kept {
		out[i] = s.p
	}
	return out
}

// Paginate windows a ranked slice. Out-of-range skips yield an empty page.
func Paginate(items []Product, take, skip int) []Product {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []Product{}
	}
	items = items[skip:]
	if take >= 0 && take < len(items) {
		items = items[:take]
	}
	return items
}

// compact strips everything but letters and digits.
func compact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenPrefixMatch returns the query token count if every query token is a
// prefix of some name token, else 0.
func tokenPrefixMatch(name, query string) int {
	queryTokens := tokenize(query)
	nameTokens := tokenize(name)
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0
	}
	for _, qt := range queryTokens {
		matched := false
		for _, nt := range nameTokens {
			if strings.HasPrefix(nt, qt) {
				matched = true
				break
			}
		}
		if !matched {
			return 0
		}
	}
	return len(queryTokens)
}

// similarity converts levenshtein distance to a 0..1 ratio.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
