package verify

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var punctuationRegex = regexp.MustCompile(`[^\w\s]`)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases and strips diacritics so that localized
// catalog text matches the ASCII vocabulary tables.
func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}
	return s
}

// stopWords includes basic English stop words plus catalog noise that
// carries no category signal.
var stopWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	"it": true, "as": true, "be": true, "was": true, "are": true,
	// Catalog filler terms
	"type": true, "target": true, "brand": true, "item": true,
	"product": true, "new": true, "premium": true, "original": true,
	"assorted": true, "misc": true, "other": true, "general": true,
	// Size noise
	"small": true, "medium": true, "large": true, "xl": true,
	"size": true, "value": true, "family": true, "per": true,
}

// tokenize splits normalized text into lowercase tokens, dropping
// punctuation, stop words, single characters and pure numbers.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(normalizeText(s), " ")
	words := strings.Fields(cleaned)

	var tokens []string
	for _, word := range words {
		if len(word) <= 1 {
			continue
		}
		if stopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits.
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// levenshteinDistance calculates the edit distance between two strings
// using two rows instead of a full matrix.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

// similarityScore blends word overlap and character edit distance into
// a [0,1] score for partial concept matches.
func similarityScore(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	shared := 0
	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	for _, w := range wordsB {
		if setA[w] {
			shared++
		}
	}
	maxWords := len(wordsA)
	if len(wordsB) > maxWords {
		maxWords = len(wordsB)
	}
	wordSim := float64(shared) / float64(maxWords)

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	charSim := 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
	if charSim < 0 {
		charSim = 0
	}

	return wordSim*0.5 + charSim*0.5
}

// tokenCloseness is the character level closeness of two single
// tokens, 1 for identical strings.
func tokenCloseness(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	closeness := 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
	if closeness < 0 {
		return 0
	}
	return closeness
}

// categoryDimensions maps each product category to the unit dimension
// its goods are normally sold in.
var categoryDimensions = map[Category]Dimension{
	CategoryOil:         DimensionVolume,
	CategoryCleaning:    DimensionWeight,
	CategoryFood:        DimensionWeight,
	CategoryBeverage:    DimensionVolume,
	CategoryElectronics: DimensionQuantity,
	CategoryCosmetics:   DimensionQuantity,
}

// recommendedUnitCodes lists the unit codes suggested to merchants when
// a product should carry a different dimension.
var recommendedUnitCodes = map[Dimension][]string{
	DimensionVolume:   {"L", "ML", "LTR"},
	DimensionWeight:   {"KG", "G", "MG"},
	DimensionQuantity: {"PC", "PCS", "SET"},
	DimensionLength:   {"M", "CM", "MM"},
	DimensionArea:     {"M2", "SQM"},
	DimensionRate:     {"HZ", "RPM"},
}

// relatedCategories marks adjacent categories that must not be reported
// as classification mismatches against each other.
var relatedCategories = map[Category][]Category{
	CategoryFood:      {CategoryBeverage},
	CategoryBeverage:  {CategoryFood},
	CategoryCleaning:  {CategoryCosmetics},
	CategoryCosmetics: {CategoryCleaning},
}

func categoriesRelated(a, b Category) bool {
	if a == b {
		return true
	}
	for _, rel := range relatedCategories[a] {
		if rel == b {
			return true
		}
	}
	return false
}
