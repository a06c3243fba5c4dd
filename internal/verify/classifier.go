package verify

import (
	"regexp"
	"strings"
)

// Detection method labels recorded on category verdicts.
const (
	methodContextRule  = "context_rule"
	methodPhraseMatch  = "phrase_match"
	methodKeywordScore = "keyword_score"
	methodOverride     = "special_override"
	methodNone         = "none"
)

// Keyword scoring parameters.
const (
	nameMatchBonus      = 0.5 // extra weight share for product-name hits
	keywordScoreDivisor = 3.0 // score reaching this maps to confidence 100
)

// contextRule encodes co-occurrence knowledge that plain keyword
// scoring cannot express. Every pattern must match.
type contextRule struct {
	name       string
	patterns   []*regexp.Regexp
	category   Category
	confidence float64
	dimension  Dimension
}

var (
	reAutomotiveWord  = regexp.MustCompile(`\b(engine|motor|transmission|gearbox|hydraulic)\b`)
	reLubricantWord   = regexp.MustCompile(`\b(oil|lubricant|grease)\b`)
	reViscosityGrade  = regexp.MustCompile(`\b\d+w-?\d+\b`)
	reAPIServiceClass = regexp.MustCompile(`\bapi\s+s[a-z]\b`)
	reLaundryWord     = regexp.MustCompile(`\b(washing|laundry)\b`)
	reDetergentWord   = regexp.MustCompile(`\b(powder|detergent|softener)\b`)
	reEdiblePrefix    = regexp.MustCompile(`\b(cooking|olive|vegetable|sunflower|corn|palm)\b`)
	reOilWord         = regexp.MustCompile(`\boils?\b`)
)

var contextRules = []contextRule{
	{"automotive lubricant", []*regexp.Regexp{reAutomotiveWord, reLubricantWord}, CategoryOil, 95, DimensionVolume},
	{"viscosity grade", []*regexp.Regexp{reViscosityGrade}, CategoryOil, 95, DimensionVolume},
	{"api service class", []*regexp.Regexp{reAPIServiceClass}, CategoryOil, 92, DimensionVolume},
	{"laundry detergent", []*regexp.Regexp{reLaundryWord, reDetergentWord}, CategoryCleaning, 92, DimensionWeight},
	{"edible oil", []*regexp.Regexp{reEdiblePrefix, reOilWord}, CategoryFood, 92, DimensionVolume},
}

// phraseVote contributes a weighted vote for a category when the
// phrase occurs in the combined text.
type phraseVote struct {
	phrase    string
	category  Category
	dimension Dimension
	weight    float64
}

var phraseVotes = []phraseVote{
	{"engine oil", CategoryOil, DimensionVolume, 2.8},
	{"motor oil", CategoryOil, DimensionVolume, 2.8},
	{"gear oil", CategoryOil, DimensionVolume, 2.6},
	{"brake fluid", CategoryOil, DimensionVolume, 2.4},
	{"washing powder", CategoryCleaning, DimensionWeight, 2.8},
	{"washing liquid", CategoryCleaning, DimensionVolume, 2.4},
	{"dish soap", CategoryCleaning, DimensionVolume, 2.4},
	{"olive oil", CategoryFood, DimensionVolume, 2.8},
	{"cooking oil", CategoryFood, DimensionVolume, 2.8},
	{"corn flakes", CategoryFood, DimensionWeight, 2.4},
	{"soft drink", CategoryBeverage, DimensionVolume, 2.6},
	{"energy drink", CategoryBeverage, DimensionVolume, 2.6},
	{"mineral water", CategoryBeverage, DimensionVolume, 2.6},
	{"mobile phone", CategoryElectronics, DimensionQuantity, 2.8},
	{"power bank", CategoryElectronics, DimensionQuantity, 2.4},
	{"face cream", CategoryCosmetics, DimensionQuantity, 2.4},
	{"body lotion", CategoryCosmetics, DimensionQuantity, 2.4},
}

// weightedKeyword pairs a term with its vote strength.
type weightedKeyword struct {
	term   string
	weight float64
}

var categoryKeywords = map[Category][]weightedKeyword{
	CategoryOil: {
		{"oil", 1.2}, {"lubricant", 1.5}, {"grease", 1.3}, {"coolant", 1.0},
		{"viscosity", 1.0}, {"synthetic", 0.8}, {"engine", 0.8}, {"motor", 0.7},
		{"hydraulic", 0.9}, {"transmission", 0.8}, {"additive", 0.7},
	},
	CategoryCleaning: {
		{"detergent", 1.5}, {"cleaner", 1.3}, {"bleach", 1.2}, {"disinfectant", 1.2},
		{"soap", 1.1}, {"washing", 1.0}, {"laundry", 1.0}, {"softener", 1.0},
		{"degreaser", 1.1}, {"wipes", 0.8},
	},
	CategoryFood: {
		{"rice", 1.2}, {"sugar", 1.2}, {"flour", 1.2}, {"pasta", 1.1},
		{"biscuit", 1.1}, {"bread", 1.1}, {"cheese", 1.1}, {"chocolate", 1.0},
		{"snack", 1.0}, {"honey", 1.0}, {"milk", 0.9}, {"sauce", 0.9}, {"food", 0.8},
	},
	CategoryBeverage: {
		{"juice", 1.3}, {"beverage", 1.3}, {"soda", 1.2}, {"cola", 1.2},
		{"drink", 1.1}, {"coffee", 1.0}, {"tea", 1.0}, {"water", 0.9}, {"energy", 0.6},
	},
	CategoryElectronics: {
		{"phone", 1.3}, {"laptop", 1.3}, {"tablet", 1.2}, {"charger", 1.2},
		{"headphone", 1.2}, {"electronic", 1.2}, {"battery", 1.1}, {"speaker", 1.1},
		{"cable", 0.9}, {"device", 0.8},
	},
	CategoryCosmetics: {
		{"shampoo", 1.3}, {"perfume", 1.3}, {"makeup", 1.3}, {"cosmetic", 1.3},
		{"lotion", 1.2}, {"deodorant", 1.2}, {"lipstick", 1.2}, {"serum", 1.1},
		{"cream", 1.0},
	},
}

// categoryOrder fixes iteration order so tie-breaks are deterministic.
var categoryOrder = []Category{
	CategoryOil,
	CategoryCleaning,
	CategoryFood,
	CategoryBeverage,
	CategoryElectronics,
	CategoryCosmetics,
}

// ClassifyCategory infers the product family from name, brand and
// classification text. Tiers run in strict precedence: contextual
// rules, phrase votes, keyword scoring, then special-case overrides on
// the scored result. Pure function.
func ClassifyCategory(name, brand, classification string) CategoryVerdict {
	combined := normalizeText(strings.Join([]string{name, brand, classification}, " "))
	if strings.TrimSpace(combined) == "" {
		return CategoryVerdict{Category: CategoryNone, ExpectedDimension: DimensionUnknown, DetectionMethod: methodNone}
	}

	for _, rule := range contextRules {
		matched := make([]string, 0, len(rule.patterns))
		hit := true
		for _, re := range rule.patterns {
			frag := re.FindString(combined)
			if frag == "" {
				hit = false
				break
			}
			matched = append(matched, frag)
		}
		if hit {
			return CategoryVerdict{
				Category:          rule.category,
				Confidence:        clampConfidence(rule.confidence),
				ExpectedDimension: rule.dimension,
				DetectionMethod:   methodContextRule,
				MatchedPatterns:   append([]string{rule.name}, matched...),
			}
		}
	}

	if verdict, ok := phraseVerdict(combined); ok {
		return verdict
	}

	verdict := keywordVerdict(combined, normalizeText(name))
	return applyOverrides(combined, verdict)
}

func phraseVerdict(combined string) (CategoryVerdict, bool) {
	votes := make(map[Category]float64)
	strongest := make(map[Category]phraseVote)
	matches := make(map[Category][]string)
	for _, vote := range phraseVotes {
		if !strings.Contains(combined, vote.phrase) {
			continue
		}
		votes[vote.category] += vote.weight
		matches[vote.category] = append(matches[vote.category], vote.phrase)
		if vote.weight > strongest[vote.category].weight {
			strongest[vote.category] = vote
		}
	}
	if len(votes) == 0 {
		return CategoryVerdict{}, false
	}

	var best Category
	bestScore := 0.0
	for _, cat := range categoryOrder {
		if votes[cat] > bestScore {
			bestScore = votes[cat]
			best = cat
		}
	}
	return CategoryVerdict{
		Category:          best,
		Confidence:        clampConfidence(bestScore / keywordScoreDivisor * 100),
		ExpectedDimension: strongest[best].dimension,
		DetectionMethod:   methodPhraseMatch,
		MatchedPatterns:   matches[best],
	}, true
}

func keywordVerdict(combined, name string) CategoryVerdict {
	tokens := strings.Fields(punctuationRegex.ReplaceAllString(combined, " "))
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	nameTokens := make(map[string]bool)
	for _, tok := range strings.Fields(punctuationRegex.ReplaceAllString(name, " ")) {
		nameTokens[tok] = true
	}

	scores := make(map[Category]float64)
	matches := make(map[Category][]string)
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			occurrences := counts[kw.term]
			if occurrences == 0 {
				continue
			}
			score := kw.weight * float64(occurrences)
			if nameTokens[kw.term] {
				score += kw.weight * nameMatchBonus
			}
			scores[cat] += score
			matches[cat] = append(matches[cat], kw.term)
		}
	}

	var best Category
	bestScore := 0.0
	for _, cat := range categoryOrder {
		if scores[cat] > bestScore {
			bestScore = scores[cat]
			best = cat
		}
	}
	if bestScore <= 0 {
		return CategoryVerdict{Category: CategoryNone, ExpectedDimension: DimensionUnknown, DetectionMethod: methodNone}
	}
	return CategoryVerdict{
		Category:          best,
		Confidence:        clampConfidence(bestScore / keywordScoreDivisor * 100),
		ExpectedDimension: categoryDimensions[best],
		DetectionMethod:   methodKeywordScore,
		MatchedPatterns:   matches[best],
	}
}

// applyOverrides forces well-known corrections onto the scored verdict.
func applyOverrides(combined string, verdict CategoryVerdict) CategoryVerdict {
	if strings.Contains(combined, "wash") &&
		(strings.Contains(combined, "powder") || strings.Contains(combined, "detergent") || strings.Contains(combined, "soap")) {
		verdict.Category = CategoryCleaning
		if strings.Contains(combined, "powder") {
			verdict.ExpectedDimension = DimensionWeight
		} else {
			verdict.ExpectedDimension = DimensionVolume
		}
		if verdict.Confidence < 85 {
			verdict.Confidence = 85
		}
		verdict.DetectionMethod = methodOverride
		verdict.MatchedPatterns = append(verdict.MatchedPatterns, "wash override")
	}
	return verdict
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
