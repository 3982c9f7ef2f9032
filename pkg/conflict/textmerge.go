package conflict

// damerauLevenshtein computes the Damerau-Levenshtein edit distance
// between a and b (insertions, deletions, substitutions, and adjacent
// transpositions each cost 1). No pack repo imports a fuzzy-string-diff
// library, so this ~30-line stdlib implementation is the justified
// exception to "avoid stdlib where the corpus shows a library" (spec
// §4.7 calls for Damerau-Levenshtein specifically, a small closed
// algorithm rather than an ambient concern any example repo's
// dependency stack covers).
func damerauLevenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	da := make(map[rune]int)
	maxDist := len(a) + len(b)
	d := make([][]int, len(a)+2)
	for i := range d {
		d[i] = make([]int, len(b)+2)
	}
	d[0][0] = maxDist
	for i := 0; i <= len(a); i++ {
		d[i+1][0] = maxDist
		d[i+1][1] = i
	}
	for j := 0; j <= len(b); j++ {
		d[0][j+1] = maxDist
		d[1][j+1] = j
	}

	for i := 1; i <= len(a); i++ {
		db := 0
		for j := 1; j <= len(b); j++ {
			k := da[b[j-1]]
			l := db
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
				db = j
			}
			sub := d[i][j] + cost
			ins := d[i+1][j] + 1
			del := d[i][j+1] + 1
			trans := d[k][l] + (i-k-1) + 1 + (j-l-1)
			min := sub
			if ins < min {
				min = ins
			}
			if del < min {
				min = del
			}
			if trans < min {
				min = trans
			}
			d[i+1][j+1] = min
		}
		da[a[i-1]] = i
	}
	return d[len(a)+1][len(b)+1]
}

// normalizedSimilarity returns 1.0 for identical strings down to 0.0
// for maximally different ones, as 1 - distance/max(len(a), len(b)).
func normalizedSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	dist := damerauLevenshtein(ra, rb)
	return 1.0 - float64(dist)/float64(maxLen)
}

// similarityMergeThreshold is the cutoff above which two text values
// are treated as close edits of one another (so the later one wins)
// rather than unrelated content (so both are concatenated).
const similarityMergeThreshold = 0.6

// mergeText implements spec §4.7's text-attribute merge rule: identical
// strings return either; a subset relationship returns the superset;
// otherwise similar strings (by normalized Damerau-Levenshtein) keep
// the later-timestamped one, and dissimilar strings are concatenated
// with a newline separator in timestamp order.
func mergeText(localText, remoteText string, localTimestamp, remoteTimestamp int64) string {
	if localText == remoteText {
		return localText
	}
	if localText == "" {
		return remoteText
	}
	if remoteText == "" {
		return localText
	}
	if containsSubstr(localText, remoteText) {
		return localText
	}
	if containsSubstr(remoteText, localText) {
		return remoteText
	}
	if normalizedSimilarity(localText, remoteText) >= similarityMergeThreshold {
		if remoteTimestamp >= localTimestamp {
			return remoteText
		}
		return localText
	}
	first, second := localText, remoteText
	if remoteTimestamp < localTimestamp {
		first, second = remoteText, localText
	}
	return first + "\n" + second
}

func containsSubstr(s, sub string) bool {
	return len(sub) <= len(s) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
