package verify

import (
	"fmt"
	"path"
	"strings"
)

// conceptValidThreshold is the minimum concept agreement score for an
// image to be considered a valid depiction of the product.
const conceptValidThreshold = 0.65

// Concept match tier multipliers.
const (
	exactMatchWeight    = 1.0
	partialMatchWeight  = 0.8
	semanticMatchWeight = 0.6

	semanticMatchFloor = 0.6 // minimum similarity for the semantic tier
)

// imageIssuePenalties is the confidence cost of each open image issue.
var imageIssuePenalties = map[Severity]float64{
	SeverityCritical: 40,
	SeverityHigh:     25,
	SeverityMedium:   15,
	SeverityLow:      5,
	SeverityInfo:     0,
}

var preferredImageFormats = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true,
}

// contentDomains names the unrelated subjects a photo file name can
// reveal. Fixed order keeps issue output stable between runs.
var contentDomains = []struct {
	name   string
	tokens map[string]bool
}{
	{"animal", map[string]bool{
		"dog": true, "cat": true, "bird": true, "horse": true, "fish": true,
		"puppy": true, "kitten": true, "pet": true, "animal": true,
	}},
	{"person", map[string]bool{
		"man": true, "woman": true, "person": true, "people": true,
		"selfie": true, "portrait": true, "face": true, "model": true,
	}},
	{"landscape", map[string]bool{
		"park": true, "beach": true, "mountain": true, "forest": true,
		"sunset": true, "landscape": true, "garden": true, "nature": true, "sky": true,
	}},
	{"building", map[string]bool{
		"house": true, "building": true, "office": true, "tower": true,
		"bridge": true, "interior": true,
	}},
	{"vehicle", map[string]bool{
		"car": true, "truck": true, "bike": true, "motorcycle": true,
		"bus": true, "vehicle": true,
	}},
	{"abstract", map[string]bool{
		"pattern": true, "texture": true, "gradient": true, "abstract": true,
		"wallpaper": true,
	}},
	{"technology", map[string]bool{
		"screen": true, "screenshot": true, "chart": true, "diagram": true,
		"code": true, "app": true,
	}},
}

// incompatibleContentDomains lists the content domains that can never
// depict a product of the given family.
var incompatibleContentDomains = map[Category]map[string]bool{
	CategoryOil: {
		"animal": true, "person": true, "landscape": true, "building": true, "abstract": true,
	},
	CategoryCleaning: {
		"animal": true, "landscape": true, "vehicle": true, "building": true,
	},
	CategoryFood: {
		"vehicle": true, "technology": true, "building": true,
	},
	CategoryBeverage: {
		"vehicle": true, "technology": true, "building": true,
	},
	CategoryElectronics: {
		"animal": true, "landscape": true, "person": true,
	},
	CategoryCosmetics: {
		"animal": true, "landscape": true, "vehicle": true, "building": true,
	},
}

// categoryImageVocab are packaging and subject words that mark a file
// name as showing the expected kind of product.
var categoryImageVocab = map[Category][]string{
	CategoryOil:         {"oil", "bottle", "can", "lubricant", "engine", "motor", "jug", "container", "barrel"},
	CategoryCleaning:    {"detergent", "soap", "powder", "bottle", "box", "bag", "spray", "clean"},
	CategoryFood:        {"pack", "box", "jar", "bag", "food", "snack", "tin", "pouch"},
	CategoryBeverage:    {"bottle", "can", "drink", "juice", "water", "carton", "glass"},
	CategoryElectronics: {"box", "device", "phone", "gadget", "product", "unboxed"},
	CategoryCosmetics:   {"tube", "jar", "bottle", "cream", "spray", "compact", "palette"},
}

// categoryConceptExpansions widen the expected concept set with the
// packaging typically photographed for each family.
var categoryConceptExpansions = map[Category][]string{
	CategoryOil:         {"bottle", "container", "lubricant", "oil"},
	CategoryCleaning:    {"detergent", "soap", "box", "bottle", "packaging"},
	CategoryFood:        {"package", "box", "jar", "food"},
	CategoryBeverage:    {"bottle", "can", "drink", "liquid"},
	CategoryElectronics: {"device", "box", "electronics", "gadget"},
	CategoryCosmetics:   {"tube", "jar", "bottle", "cosmetics"},
}

var automotiveConceptCues = []string{"engine", "motor", "automotive", "machine"}

var dimensionPackagingConcepts = map[Dimension][]string{
	DimensionVolume:   {"bottle", "container"},
	DimensionWeight:   {"box", "bag"},
	DimensionQuantity: {"item", "package"},
}

// ImageAnalysisInput carries everything the analyzer may consult. The
// concept list comes from the recognition service and may be empty.
type ImageAnalysisInput struct {
	ImageRef          string
	ProductName       string
	Classification    string
	Category          Category
	ExpectedDimension Dimension
	Concepts          []DetectedConcept
	RecognitionFailed bool
}

// AnalyzeImage judges whether the product photo plausibly shows the
// product. The file name is always inspected; recognized concepts are
// folded in when available. Pure function.
func AnalyzeImage(in ImageAnalysisInput) ImageVerdict {
	var issues []ImageIssue

	base, ext := splitImageRef(in.ImageRef)
	tokens := tokenize(base)

	consistency := ContentUndetermined
	badDomains := matchedIncompatibleDomains(tokens, in.Category)
	switch {
	case len(badDomains) > 0:
		issues = append(issues, ImageIssue{
			Type:     ImageIssueContentMismatch,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("file name suggests %s content which cannot depict a %s product", strings.Join(badDomains, ", "), in.Category),
		})
		consistency = ContentMismatch
	case filenameMatchesProduct(tokens, in.Category, in.ProductName):
		consistency = ContentConsistent
	case len(tokens) > 0:
		consistency = ContentAmbiguous
	}

	if ext != "" && !preferredImageFormats[ext] {
		issues = append(issues, ImageIssue{
			Type:     ImageIssueFormat,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("image format %s is not preferred, use jpg or png", ext),
		})
	}

	conceptPhaseRan := false
	switch {
	case in.RecognitionFailed:
		issues = append(issues, ImageIssue{
			Type:     ImageIssueRecognitionDown,
			Severity: SeverityLow,
			Message:  "image recognition was unavailable, content judged from the file name only",
		})
	case len(in.Concepts) > 0:
		conceptPhaseRan = true
		score, offendingConcept := scoreConcepts(in)
		switch {
		case offendingConcept != "" && consistency != ContentMismatch:
			issues = append(issues, ImageIssue{
				Type:     ImageIssueContentMismatch,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("recognized %q in the photo, which cannot depict a %s product", offendingConcept, in.Category),
			})
			consistency = ContentMismatch
		case offendingConcept == "" && score >= conceptValidThreshold:
			if consistency != ContentMismatch {
				consistency = ContentConsistent
			}
		case offendingConcept == "":
			issues = append(issues, ImageIssue{
				Type:     ImageIssueConceptMismatch,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("recognized concepts agree with the product at %.0f%%, below the %.0f%% acceptance line", score*100, conceptValidThreshold*100),
			})
		}
	}

	if !conceptPhaseRan {
		switch consistency {
		case ContentAmbiguous:
			issues = append(issues, ImageIssue{
				Type:     ImageIssueAmbiguousContent,
				Severity: SeverityMedium,
				Message:  "file name carries no recognizable product subject",
			})
		case ContentUndetermined:
			issues = append(issues, ImageIssue{
				Type:     ImageIssueUndeterminedContent,
				Severity: SeverityLow,
				Message:  "image content could not be determined from the available signals",
			})
		}
	}

	confidence := 100.0
	isValid := true
	for _, issue := range issues {
		confidence -= imageIssuePenalties[issue.Severity]
		if issue.Severity == SeverityCritical || issue.Severity == SeverityHigh {
			isValid = false
		}
	}
	if confidence < 0 {
		confidence = 0
	}
	return ImageVerdict{
		IsValid:            isValid,
		Confidence:         confidence,
		ContentConsistency: consistency,
		Issues:             issues,
	}
}

// splitImageRef reduces a file reference, possibly a full URL, to its
// base name without extension plus the lowercased extension.
func splitImageRef(ref string) (string, string) {
	ref = strings.TrimSpace(ref)
	if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		ref = ref[:idx]
	}
	base := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	ext := strings.TrimPrefix(path.Ext(base), ".")
	return strings.TrimSuffix(base, path.Ext(base)), strings.ToLower(ext)
}

func matchedIncompatibleDomains(tokens []string, category Category) []string {
	banned := incompatibleContentDomains[category]
	if len(banned) == 0 {
		return nil
	}
	var out []string
	for _, domain := range contentDomains {
		if !banned[domain.name] {
			continue
		}
		for _, tok := range tokens {
			if domain.tokens[tok] {
				out = append(out, domain.name)
				break
			}
		}
	}
	return out
}

func filenameMatchesProduct(tokens []string, category Category, productName string) bool {
	vocab := categoryImageVocab[category]
	nameTokens := make(map[string]bool)
	for _, tok := range tokenize(productName) {
		if len(tok) >= 3 {
			nameTokens[tok] = true
		}
	}
	for _, tok := range tokens {
		if nameTokens[tok] {
			return true
		}
		for _, want := range vocab {
			if tok == want {
				return true
			}
		}
	}
	return false
}

// scoreConcepts grades the recognized concepts against the expected
// concept set and reports the first recognized concept that belongs to
// a content domain the category can never show.
func scoreConcepts(in ImageAnalysisInput) (float64, string) {
	banned := incompatibleContentDomains[in.Category]
	for _, domain := range contentDomains {
		if !banned[domain.name] {
			continue
		}
		for _, concept := range in.Concepts {
			if concept.Confidence >= 0.8 && domain.tokens[normalizeText(concept.Name)] {
				return 0, concept.Name
			}
		}
	}

	expected := expectedConcepts(in.ProductName, in.Classification, in.Category, in.ExpectedDimension)
	if len(expected) == 0 {
		return 0, ""
	}

	matched := 0
	solidMatches := 0
	strongExact := false
	sumWeighted := 0.0
	for _, term := range expected {
		weighted, tier := bestConceptMatch(term, in.Concepts)
		if tier == "" {
			continue
		}
		matched++
		sumWeighted += weighted
		if weighted >= 0.5 {
			solidMatches++
		}
		if tier == "exact" && weighted >= 0.9 {
			strongExact = true
		}
	}
	if matched == 0 {
		return 0, ""
	}

	ratio := float64(matched) / float64(len(expected))
	avgWeighted := sumWeighted / float64(matched)
	score := 0.6*ratio + 0.4*avgWeighted
	if (solidMatches >= 2 || strongExact) && score < conceptValidThreshold {
		score = conceptValidThreshold
	}
	return score, ""
}

func bestConceptMatch(term string, concepts []DetectedConcept) (float64, string) {
	best := 0.0
	tier := ""
	for _, concept := range concepts {
		name := normalizeText(concept.Name)
		switch {
		case name == term:
			if w := concept.Confidence * exactMatchWeight; w > best {
				best, tier = w, "exact"
			}
		case strings.Contains(name, term) || strings.Contains(term, name):
			if w := concept.Confidence * partialMatchWeight; w > best {
				best, tier = w, "partial"
			}
		case similarityScore(name, term) >= semanticMatchFloor:
			if w := concept.Confidence * semanticMatchWeight; w > best {
				best, tier = w, "semantic"
			}
		}
	}
	return best, tier
}

func expectedConcepts(productName, classification string, category Category, dim Dimension) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(terms ...string) {
		for _, term := range terms {
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			out = append(out, term)
		}
	}

	for _, tok := range tokenize(productName) {
		if len(tok) >= 3 {
			add(tok)
		}
	}
	add(categoryConceptExpansions[category]...)
	combined := normalizeText(productName + " " + classification)
	if strings.Contains(combined, "engine") || strings.Contains(combined, "motor") {
		add(automotiveConceptCues...)
	}
	parsed := ParseClassification(classification)
	for _, tok := range tokenize(parsed.Description) {
		if len(tok) >= 3 {
			add(tok)
		}
	}
	add(dimensionPackagingConcepts[dim]...)
	return out
}
