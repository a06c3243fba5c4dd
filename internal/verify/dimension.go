package verify

import "strings"

// dimensionPatternSet groups the unit codes and name fragments that
// identify one dimension. Codes match whole tokens, words match
// substrings of the combined text.
type dimensionPatternSet struct {
	dimension Dimension
	codes     []string
	words     []string
}

// Ordered by precedence. Rate runs before length so "rpm"-style codes
// never leak into length through their trailing "m"; area patterns are
// likewise excluded from the length check ("square meter").
var dimensionPatterns = []dimensionPatternSet{
	{DimensionRate,
		[]string{"hz", "khz", "rpm", "bpm", "kmh", "mph", "pct"},
		[]string{"per ", "hertz", "/h", "/min", "/s", "percent", "ratio"}},
	{DimensionVolume,
		[]string{"l", "ltr", "lt", "ml", "mlt", "cl", "dl", "gal", "gll", "cc", "m3", "mtq", "fl"},
		[]string{"liter", "litre", "gallon", "fluid", "millilit", "centilit", "barrel", "cubic"}},
	{DimensionWeight,
		[]string{"kg", "kgm", "g", "gm", "gr", "mg", "mgm", "lb", "lbs", "oz", "t", "tn", "tne"},
		[]string{"gram", "kilo", "pound", "ounce", "tonne", "ton", "quintal"}},
	{DimensionQuantity,
		[]string{"pc", "pcs", "ea", "un", "unt", "set", "pr", "doz", "dzn", "pk", "bx", "ctn"},
		[]string{"piece", "each", "pair", "dozen", "pack", "carton", "bundle", "sachet"}},
	{DimensionLength,
		[]string{"m", "cm", "mm", "km", "ft", "in", "yd", "mtr"},
		[]string{"meter", "metre", "inch", "foot", "feet", "yard"}},
	{DimensionArea,
		[]string{"m2", "sqm", "sqft", "ha", "mtk"},
		[]string{"square", "acre", "hectare"}},
}

// exactDimensionCodes resolves bare codes the pattern sets miss.
var exactDimensionCodes = map[string]Dimension{
	"kg":  DimensionWeight,
	"dz":  DimensionQuantity,
	"gro": DimensionQuantity,
	"cs":  DimensionQuantity,
	"rl":  DimensionQuantity,
	"bag": DimensionQuantity,
	"btl": DimensionVolume,
	"drm": DimensionVolume,
	"tin": DimensionVolume,
	"jar": DimensionVolume,
}

// ResolveDimension infers the measurement dimension from a unit code
// and name. Either argument may be empty. Pure function.
func ResolveDimension(code, name string) Dimension {
	text := normalizeText(strings.TrimSpace(code + " " + name))
	if text == "" {
		return DimensionUnknown
	}
	tokens := strings.Fields(punctuationRegex.ReplaceAllString(text, " "))

	for _, set := range dimensionPatterns {
		if set.dimension == DimensionLength && (matchesAnyOf(DimensionRate, text, tokens) || matchesAnyOf(DimensionArea, text, tokens)) {
			continue
		}
		if set.matches(text, tokens) {
			return set.dimension
		}
	}

	if dim, ok := exactDimensionCodes[normalizeText(code)]; ok {
		return dim
	}
	return DimensionUnknown
}

// ResolveUnit builds the ephemeral descriptor for a unit of measure.
func ResolveUnit(code, name string) UnitDescriptor {
	return UnitDescriptor{Code: code, Name: name, Dimension: ResolveDimension(code, name)}
}

func (set dimensionPatternSet) matches(text string, tokens []string) bool {
	for _, code := range set.codes {
		for _, tok := range tokens {
			if tok == code {
				return true
			}
		}
	}
	for _, word := range set.words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func matchesAnyOf(dim Dimension, text string, tokens []string) bool {
	for _, set := range dimensionPatterns {
		if set.dimension == dim {
			return set.matches(text, tokens)
		}
	}
	return false
}
