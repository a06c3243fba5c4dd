package verify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verity-catalog/verity-catalog/internal/catalog"
)

// Input bundles the product row with its resolved master data and the
// recognition output collected for its photo. Master references and
// concepts are optional.
type Input struct {
	Product           catalog.ProductRecord
	Brand             *catalog.BrandRef
	Unit              *catalog.UnitRef
	Classification    *catalog.ClassificationRef
	Concepts          []DetectedConcept
	RecognitionFailed bool
}

// scoreDeductions is the verification score cost per open issue.
var scoreDeductions = map[Severity]int{
	SeverityCritical: 30,
	SeverityHigh:     20,
	SeverityMedium:   10,
	SeverityLow:      5,
	SeverityInfo:     0,
}

// categoryAgreementConfidence is the classifier confidence under which
// the category agreement check falls back to plain token overlap.
const categoryAgreementConfidence = 40

// relatedTerms bridges vocabulary between product names and
// classification descriptions during the token overlap fallback.
var relatedTerms = map[string][]string{
	"oil":       {"lubricant", "engine", "motor", "grease", "petroleum"},
	"lubricant": {"oil", "engine", "motor"},
	"detergent": {"washing", "laundry", "soap", "cleaning"},
	"soap":      {"washing", "cleaning", "bath"},
	"juice":     {"fruit", "drink", "beverage"},
	"water":     {"drink", "mineral", "beverage"},
	"phone":     {"mobile", "smartphone", "cellular"},
	"noodles":   {"pasta", "instant", "ramen"},
	"shampoo":   {"hair", "wash", "care"},
	"milk":      {"dairy", "powder"},
	"rice":      {"grain", "jasmine"},
	"coffee":    {"instant", "espresso", "arabica"},
}

// Engine runs every rule against one product and folds the findings
// into a single verdict. All rule state is immutable tables, so one
// engine serves any number of goroutines.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine constructs an engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, now: time.Now}
}

// Verify checks one product. Rules run in a fixed order and each sees
// the same immutable input, so the verdict depends only on the product
// itself and is reproducible bit for bit apart from the timestamp.
func (e *Engine) Verify(in Input) Result {
	res := Result{
		ProductID:     in.Product.ID,
		Issues:        []Issue{},
		MissingFields: []string{},
		Suggestions:   []Suggestion{},
		CheckedAt:     e.now().UTC(),
	}

	e.checkRequiredFields(in, &res)

	category := ClassifyCategory(productText(in), brandText(in), classificationText(in))

	compatFlagged := false
	if unitCode(in) != "" && classificationText(in) != "" {
		unit := ResolveUnit(unitCode(in), unitName(in))
		verdict := CheckUnitCompatibility(classificationText(in), unit)
		if !verdict.Compatible {
			compatFlagged = true
			res.Issues = append(res.Issues, Issue{
				Rule:     RuleUnitCompatibility,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("unit %s does not fit the classification: %s", unit.Code, verdict.Reason),
			})
			res.Suggestions = append(res.Suggestions, Suggestion{
				Field:            FieldUnit,
				Suggestion:       fmt.Sprintf("change the unit of measure: %s", verdict.Reason),
				Importance:       SeverityHigh,
				RecommendedUnits: verdict.RecommendedUnits,
			})
		}
	}

	e.checkCategoryAgreement(in, &res)

	if !compatFlagged && unitCode(in) != "" &&
		category.Category != CategoryNone && category.ExpectedDimension != DimensionUnknown {
		unit := ResolveUnit(unitCode(in), unitName(in))
		if unit.Dimension != category.ExpectedDimension {
			res.Issues = append(res.Issues, Issue{
				Rule:     RuleUnitCategoryConsistency,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%s products are measured by %s, unit %s measures %s", category.Category, category.ExpectedDimension, unit.Code, unit.Dimension),
			})
			res.Suggestions = append(res.Suggestions, Suggestion{
				Field:            FieldUnit,
				Suggestion:       fmt.Sprintf("use a %s unit for %s products", category.ExpectedDimension, category.Category),
				Importance:       SeverityHigh,
				RecommendedUnits: recommendedUnitCodes[category.ExpectedDimension],
			})
		}
	}

	if strings.TrimSpace(in.Product.ImageRef) != "" {
		verdict := AnalyzeImage(ImageAnalysisInput{
			ImageRef:          in.Product.ImageRef,
			ProductName:       productText(in),
			Classification:    classificationText(in),
			Category:          category.Category,
			ExpectedDimension: category.ExpectedDimension,
			Concepts:          in.Concepts,
			RecognitionFailed: in.RecognitionFailed,
		})
		if !verdict.IsValid {
			for _, issue := range verdict.Issues {
				res.Issues = append(res.Issues, Issue{
					Rule:     RuleImageConsistency,
					Severity: issue.Severity,
					Message:  issue.Message,
				})
				res.Suggestions = append(res.Suggestions, Suggestion{
					Field:      FieldFrontImage,
					Suggestion: fmt.Sprintf("review the product photo: %s", issue.Message),
					Importance: issue.Severity,
				})
				if issue.Type == ImageIssueContentMismatch {
					res.Suggestions = append(res.Suggestions, Suggestion{
						Field:      FieldFrontImage,
						Suggestion: "replace the photo, customers will see content unrelated to the product",
						Importance: SeverityCritical,
					})
				}
			}
		}
	}

	e.finalize(&res)

	e.logger.Debug("product verified",
		slog.Int64("product_id", in.Product.ID),
		slog.String("status", string(res.Status)),
		slog.Int("score", res.VerificationScore),
		slog.Int("issues", len(res.Issues)))
	return res
}

func (e *Engine) checkRequiredFields(in Input, res *Result) {
	checks := []struct {
		field      string
		present    bool
		message    string
		suggestion string
	}{
		{FieldFrontImage, strings.TrimSpace(in.Product.ImageRef) != "", "product has no front image", "upload a front photo of the product packaging"},
		{FieldBrand, brandText(in) != "", "product is not assigned to a brand", "assign the product to its brand"},
		{FieldCategory, classificationText(in) != "", "product has no classification", "pick the catalog classification that fits the product"},
		{FieldUnit, unitCode(in) != "", "product has no unit of measure", "select the unit of measure the product is sold in"},
	}
	for _, check := range checks {
		if check.present {
			continue
		}
		res.MissingFields = append(res.MissingFields, check.field)
		res.Issues = append(res.Issues, Issue{
			Rule:     RuleRequiredFields,
			Severity: SeverityCritical,
			Message:  check.message,
		})
		res.Suggestions = append(res.Suggestions, Suggestion{
			Field:      check.field,
			Suggestion: check.suggestion,
			Importance: SeverityCritical,
		})
	}
}

// checkCategoryAgreement verifies that the classification family fits
// the product identity. When both sides classify confidently the
// families are compared directly, otherwise the check falls back to
// token overlap between name and classification description.
func (e *Engine) checkCategoryAgreement(in Input, res *Result) {
	name := productText(in)
	classText := classificationText(in)
	if strings.TrimSpace(name) == "" || strings.TrimSpace(classText) == "" {
		return
	}

	nameCat := ClassifyCategory(name, brandText(in), "")
	classCat := ClassifyCategory(classText, "", "")
	if nameCat.Category != CategoryNone && nameCat.Confidence >= categoryAgreementConfidence &&
		classCat.Category != CategoryNone && classCat.Confidence >= categoryAgreementConfidence {
		if !categoriesRelated(nameCat.Category, classCat.Category) {
			res.Issues = append(res.Issues, Issue{
				Rule:     RuleCategoryClassification,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("classification %q belongs to the %s family while the product reads as %s", ParseClassification(classText).Description, classCat.Category, nameCat.Category),
			})
			res.Suggestions = append(res.Suggestions, Suggestion{
				Field:      FieldCategory,
				Suggestion: fmt.Sprintf("move the product to a classification in the %s family", nameCat.Category),
				Importance: SeverityHigh,
			})
		}
		return
	}

	if !textsShareVocabulary(name, classText) {
		res.Issues = append(res.Issues, Issue{
			Rule:     RuleCategoryClassification,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("product name %q shares no vocabulary with classification %q", in.Product.Name, ParseClassification(classText).Description),
		})
		res.Suggestions = append(res.Suggestions, Suggestion{
			Field:      FieldCategory,
			Suggestion: "review whether the classification really covers this product",
			Importance: SeverityHigh,
		})
	}
}

func (e *Engine) finalize(res *Result) {
	critical := res.CountBySeverity(SeverityCritical)
	high := res.CountBySeverity(SeverityHigh)
	medium := res.CountBySeverity(SeverityMedium)

	res.IsValid = critical == 0 && high == 0
	res.Status = StatusUnverified
	if res.IsValid {
		res.Status = StatusVerified
	}

	score := 100
	for _, issue := range res.Issues {
		score -= scoreDeductions[issue.Severity]
	}
	if score < 0 {
		score = 0
	}
	res.VerificationScore = score

	if len(res.Issues) == 0 {
		res.ConfidenceLevel = 90
	} else {
		confidence := 50 + 15*critical + 5*(high+medium)
		if confidence > 95 {
			confidence = 95
		}
		res.ConfidenceLevel = confidence
	}

	if res.Status == StatusUnverified && len(res.Suggestions) == 0 {
		res.Suggestions = append(res.Suggestions, Suggestion{
			Field:      "general",
			Suggestion: "review the product data, at least one verification check could not pass",
			Importance: SeverityMedium,
		})
	}
}

// textsShareVocabulary reports whether two texts overlap after related
// term expansion, with a fuzzy pass for spelling variants.
func textsShareVocabulary(a, b string) bool {
	aTokens := tokenize(a)
	bTokens := tokenize(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return true
	}
	aSet := expandWithRelated(aTokens)
	bSet := expandWithRelated(bTokens)
	for term := range aSet {
		if bSet[term] {
			return true
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if tokenCloseness(at, bt) >= 0.8 {
				return true
			}
		}
	}
	return false
}

func expandWithRelated(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
		for _, rel := range relatedTerms[tok] {
			set[rel] = true
		}
	}
	return set
}

func productText(in Input) string {
	name := strings.TrimSpace(in.Product.Name)
	local := strings.TrimSpace(in.Product.LocalName)
	if local != "" && !strings.EqualFold(local, name) {
		return strings.TrimSpace(name + " " + local)
	}
	return name
}

func brandText(in Input) string {
	if in.Product.BrandName != "" {
		return in.Product.BrandName
	}
	if in.Brand != nil {
		return in.Brand.Name
	}
	return ""
}

func classificationText(in Input) string {
	if in.Product.Classification != "" {
		return in.Product.Classification
	}
	if in.Classification != nil {
		if in.Classification.Code != "" {
			return in.Classification.Code + "-" + in.Classification.Label
		}
		return in.Classification.Label
	}
	return ""
}

func unitCode(in Input) string {
	if code := strings.TrimSpace(in.Product.UnitCode); code != "" {
		return code
	}
	if in.Unit != nil {
		return in.Unit.Code
	}
	return ""
}

func unitName(in Input) string {
	if in.Unit != nil {
		return in.Unit.Name
	}
	return ""
}
