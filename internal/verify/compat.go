package verify

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Detection method labels recorded on compatibility verdicts.
const (
	methodVector          = "semantic_vector"
	methodKeywordFallback = "keyword_fallback"
	methodNGramOverride   = "ngram_override"
	methodIndustryRule    = "industry_rule"
	methodFormatCheck     = "format_check"
)

const (
	// vectorAcceptThreshold is the minimum cosine similarity for a
	// dimension axis to be considered detected at all.
	vectorAcceptThreshold = 0.5
	// semanticConfidenceFloor is the confidence below which the vector
	// result is re-examined with keyword fractions, and above which a
	// dimension disagreement becomes an incompatibility.
	semanticConfidenceFloor = 0.6
)

// semanticVector profiles a word across five physical characters:
// liquid, solid, discrete, area, length.
type semanticVector [5]float64

// semanticAxes are the canonical profiles of the measurable
// dimensions, in fixed order so ties resolve the same way every run.
var semanticAxes = []struct {
	dimension Dimension
	vector    semanticVector
}{
	{DimensionVolume, semanticVector{1, 0, 0, 0, 0}},
	{DimensionWeight, semanticVector{0, 1, 0, 0, 0}},
	{DimensionQuantity, semanticVector{0, 0, 1, 0, 0}},
	{DimensionArea, semanticVector{0, 0, 0, 1, 0}},
	{DimensionLength, semanticVector{0, 0, 0, 0, 1}},
}

// neutralVector stands in when no classification word is known. It is
// deliberately equidistant from every axis and below the accept
// threshold against all of them.
var neutralVector = semanticVector{0.2, 0.2, 0.2, 0.2, 0.2}

// semanticWordVectors are hand-authored profiles for catalog words
// that carry a physical character.
var semanticWordVectors = map[string]semanticVector{
	// Liquids
	"oil":       {0.95, 0.05, 0, 0, 0},
	"oils":      {0.95, 0.05, 0, 0, 0},
	"lubricant": {0.9, 0.1, 0, 0, 0},
	"fluid":     {0.95, 0.05, 0, 0, 0},
	"liquid":    {1, 0, 0, 0, 0},
	"juice":     {0.95, 0.05, 0, 0, 0},
	"water":     {1, 0, 0, 0, 0},
	"drink":     {0.9, 0.05, 0.05, 0, 0},
	"beverage":  {0.9, 0.05, 0.05, 0, 0},
	"syrup":     {0.9, 0.1, 0, 0, 0},
	"shampoo":   {0.85, 0.1, 0.05, 0, 0},
	"paint":     {0.85, 0.15, 0, 0, 0},
	"fuel":      {0.95, 0.05, 0, 0, 0},
	"engine":    {0.7, 0.2, 0.1, 0, 0},
	"motor":     {0.65, 0.2, 0.15, 0, 0},

	// Solids sold by weight
	"powder":    {0.05, 0.9, 0.05, 0, 0},
	"rice":      {0, 0.95, 0.05, 0, 0},
	"sugar":     {0.05, 0.9, 0.05, 0, 0},
	"flour":     {0.05, 0.9, 0.05, 0, 0},
	"grain":     {0, 0.9, 0.1, 0, 0},
	"cement":    {0.05, 0.9, 0.05, 0, 0},
	"salt":      {0.05, 0.9, 0.05, 0, 0},
	"soap":      {0.2, 0.6, 0.2, 0, 0},
	"detergent": {0.3, 0.6, 0.1, 0, 0},

	// Discrete goods
	"phone":   {0, 0.05, 0.95, 0, 0},
	"device":  {0, 0.1, 0.9, 0, 0},
	"unit":    {0, 0.1, 0.9, 0, 0},
	"piece":   {0, 0.05, 0.95, 0, 0},
	"battery": {0.05, 0.1, 0.85, 0, 0},
	"charger": {0, 0.05, 0.95, 0, 0},
	"laptop":  {0, 0.05, 0.95, 0, 0},
	"set":     {0, 0, 1, 0, 0},
	"pack":    {0, 0.2, 0.8, 0, 0},

	// Surface goods
	"tile":   {0, 0.3, 0.1, 0.6, 0},
	"carpet": {0, 0.2, 0.1, 0.6, 0.1},
	"fabric": {0, 0.3, 0, 0.4, 0.3},
	"sheet":  {0, 0.3, 0.1, 0.4, 0.2},
	"panel":  {0, 0.3, 0.2, 0.5, 0},

	// Linear goods
	"cable": {0, 0.1, 0.2, 0, 0.7},
	"wire":  {0, 0.1, 0.1, 0, 0.8},
	"hose":  {0.05, 0.1, 0.15, 0, 0.7},
	"pipe":  {0, 0.2, 0.2, 0, 0.6},
	"rope":  {0, 0.1, 0.1, 0, 0.8},
	"chain": {0, 0.2, 0.2, 0, 0.6},
}

// dimensionKeywordSets back up the vector pass when too few
// classification words are in the vector table.
var dimensionKeywordSets = []struct {
	dimension Dimension
	words     map[string]bool
}{
	{DimensionVolume, map[string]bool{
		"oil": true, "oils": true, "liquid": true, "fluid": true, "juice": true,
		"drink": true, "water": true, "syrup": true, "beverage": true,
		"shampoo": true, "lotion": true, "paint": true, "fuel": true,
	}},
	{DimensionWeight, map[string]bool{
		"powder": true, "rice": true, "sugar": true, "flour": true, "grain": true,
		"cement": true, "salt": true, "solid": true, "bulk": true,
	}},
	{DimensionQuantity, map[string]bool{
		"phone": true, "device": true, "piece": true, "pieces": true, "unit": true,
		"units": true, "set": true, "pack": true, "battery": true, "charger": true,
		"tool": true,
	}},
	{DimensionArea, map[string]bool{
		"tile": true, "carpet": true, "fabric": true, "sheet": true, "panel": true,
		"board": true, "mat": true,
	}},
	{DimensionLength, map[string]bool{
		"cable": true, "wire": true, "hose": true, "pipe": true, "rope": true,
		"chain": true, "cord": true, "tube": true,
	}},
}

// dimensionOverride pins a dimension when a well-known word pair
// appears, regardless of what the statistical passes concluded.
type dimensionOverride struct {
	re         *regexp.Regexp
	dimension  Dimension
	confidence float64
}

var dimensionOverrides = []dimensionOverride{
	{regexp.MustCompile(`\b(engine|motor|transmission|hydraulic|gear)\s+oil`), DimensionVolume, 0.95},
	{regexp.MustCompile(`\b(washing|detergent)\s+powder`), DimensionWeight, 0.9},
	{regexp.MustCompile(`\bmineral\s+water`), DimensionVolume, 0.9},
}

// unitCodeFormats lists the accepted code spellings per dimension. A
// unit whose dimension was inferred from its descriptive name but
// whose code is not in the set is flagged as a formatting problem.
var unitCodeFormats = map[Dimension]*regexp.Regexp{
	DimensionVolume:   regexp.MustCompile(`^(l|lt|ltr|ml|mlt|cl|dl|gal|gll|cc|m3|mtq|fl|floz|btl|drm|tin|jar)$`),
	DimensionWeight:   regexp.MustCompile(`^(kg|kgm|g|gm|gr|mg|mgm|lb|lbs|oz|t|tn|tne|ton)$`),
	DimensionQuantity: regexp.MustCompile(`^(pc|pcs|ea|un|unt|set|pr|doz|dzn|dz|pk|bx|ctn|bag|cs|rl|gro)$`),
	DimensionLength:   regexp.MustCompile(`^(m|mtr|cm|mm|km|ft|in|yd)$`),
	DimensionArea:     regexp.MustCompile(`^(m2|mtk|sqm|sqft|ha)$`),
	DimensionRate:     regexp.MustCompile(`^(hz|khz|rpm|bpm|kmh|mph|pct)$`),
}

// CheckUnitCompatibility decides whether a unit of measure can
// plausibly price the product family named by the classification
// string. Pure function.
func CheckUnitCompatibility(classification string, unit UnitDescriptor) CompatibilityVerdict {
	text := normalizeText(classification)
	parsed := ParseClassification(classification)
	tokens := tokenize(parsed.Description)

	detected, confidence := vectorDimension(tokens)
	method := methodVector
	if confidence < semanticConfidenceFloor {
		if dim, frac := keywordDimension(tokens); frac > confidence {
			detected, confidence = dim, frac
			method = methodKeywordFallback
		}
	}
	for _, override := range dimensionOverrides {
		if override.re.MatchString(text) {
			detected, confidence = override.dimension, override.confidence
			method = methodNGramOverride
			break
		}
	}

	if confidence > semanticConfidenceFloor && detected != DimensionUnknown && detected != unit.Dimension {
		reason := fmt.Sprintf("classification %q implies %s but unit %s measures %s", parsed.Description, detected, unit.Code, unit.Dimension)
		if unit.Dimension == DimensionUnknown {
			reason = fmt.Sprintf("classification %q implies %s but unit %s has no recognizable dimension", parsed.Description, detected, unit.Code)
		}
		return CompatibilityVerdict{
			Compatible:       false,
			Reason:           reason,
			RecommendedUnits: recommendedUnitCodes[detected],
			Confidence:       clampConfidence(confidence * 100),
			DetectionMethod:  method,
		}
	}

	// Industry knowledge holds even when the statistical passes stay
	// silent: lubricants are shipped by volume or at worst by weight,
	// never by rate, length or surface.
	if automotiveOilSignature(text) {
		switch unit.Dimension {
		case DimensionRate, DimensionLength, DimensionArea:
			return CompatibilityVerdict{
				Compatible:       false,
				Reason:           fmt.Sprintf("automotive lubricants are never measured in %s units such as %s", unit.Dimension, unit.Code),
				RecommendedUnits: recommendedUnitCodes[DimensionVolume],
				Confidence:       95,
				DetectionMethod:  methodIndustryRule,
			}
		}
	}

	if unit.Dimension != DimensionUnknown {
		if re, ok := unitCodeFormats[unit.Dimension]; ok && !re.MatchString(normalizeUnitCode(unit.Code)) {
			return CompatibilityVerdict{
				Compatible:       false,
				Reason:           fmt.Sprintf("unit code %s is not a standard %s code", unit.Code, unit.Dimension),
				RecommendedUnits: recommendedUnitCodes[unit.Dimension],
				Confidence:       85,
				DetectionMethod:  methodFormatCheck,
			}
		}
	}

	if detected != DimensionUnknown && detected == unit.Dimension {
		return CompatibilityVerdict{
			Compatible:      true,
			Reason:          fmt.Sprintf("unit %s matches the %s profile of the classification", unit.Code, detected),
			Confidence:      clampConfidence(confidence * 100),
			DetectionMethod: method,
		}
	}
	return CompatibilityVerdict{
		Compatible:      true,
		Reason:          "classification text carries no reliable dimension signal",
		Confidence:      50,
		DetectionMethod: methodNone,
	}
}

func vectorDimension(tokens []string) (Dimension, float64) {
	var sum semanticVector
	known := 0
	for _, tok := range tokens {
		vec, ok := semanticWordVectors[tok]
		if !ok {
			continue
		}
		for i := range sum {
			sum[i] += vec[i]
		}
		known++
	}
	if known == 0 {
		sum = neutralVector
	} else {
		for i := range sum {
			sum[i] /= float64(known)
		}
	}

	best := DimensionUnknown
	bestScore := 0.0
	for _, axis := range semanticAxes {
		if score := cosineSimilarity(sum, axis.vector); score > bestScore {
			bestScore = score
			best = axis.dimension
		}
	}
	if bestScore <= vectorAcceptThreshold {
		return DimensionUnknown, 0
	}
	return best, bestScore
}

func keywordDimension(tokens []string) (Dimension, float64) {
	if len(tokens) == 0 {
		return DimensionUnknown, 0
	}
	best := DimensionUnknown
	bestFrac := 0.0
	for _, set := range dimensionKeywordSets {
		matched := 0
		for _, tok := range tokens {
			if set.words[tok] {
				matched++
			}
		}
		if frac := float64(matched) / float64(len(tokens)); frac > bestFrac {
			bestFrac = frac
			best = set.dimension
		}
	}
	return best, bestFrac
}

func automotiveOilSignature(text string) bool {
	if reViscosityGrade.MatchString(text) || reAPIServiceClass.MatchString(text) {
		return true
	}
	return reAutomotiveWord.MatchString(text) && reLubricantWord.MatchString(text)
}

func cosineSimilarity(a, b semanticVector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalizeUnitCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, ".", "")
	return strings.ReplaceAll(code, " ", "")
}
