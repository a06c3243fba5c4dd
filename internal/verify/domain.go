package verify

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dimension tags the physical measurement family of a unit of measure.
type Dimension string

const (
	// DimensionVolume covers liquid measures (L, ML, GAL).
	DimensionVolume Dimension = "volume"
	// DimensionWeight covers mass measures (KG, G, LB).
	DimensionWeight Dimension = "weight"
	// DimensionQuantity covers countable measures (PC, EA, SET).
	DimensionQuantity Dimension = "quantity"
	// DimensionLength covers linear measures (M, CM, FT).
	DimensionLength Dimension = "length"
	// DimensionArea covers surface measures (M2, SQFT).
	DimensionArea Dimension = "area"
	// DimensionRate covers frequency or ratio measures (HZ, RPM).
	DimensionRate Dimension = "rate"
	// DimensionUnknown is the fallback when no pattern matches.
	DimensionUnknown Dimension = "unknown"
)

// Severity grades how strongly an issue affects the verdict.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Status is the final disposition of a verified product.
type Status string

const (
	// StatusVerified means no critical or high issues were found.
	StatusVerified Status = "verified"
	// StatusUnverified means at least one critical or high issue exists.
	StatusUnverified Status = "unverified"
)

// Category enumerates the product families the classifier understands.
type Category string

const (
	CategoryOil         Category = "oil"
	CategoryCleaning    Category = "cleaning"
	CategoryFood        Category = "food"
	CategoryBeverage    Category = "beverage"
	CategoryElectronics Category = "electronics"
	CategoryCosmetics   Category = "cosmetics"
	// CategoryNone means no category scored above zero.
	CategoryNone Category = "none"
)

// ContentConsistency summarises how well an image matches its product.
type ContentConsistency string

const (
	ContentConsistent   ContentConsistency = "consistent"
	ContentAmbiguous    ContentConsistency = "ambiguous"
	ContentUndetermined ContentConsistency = "undetermined"
	ContentMismatch     ContentConsistency = "mismatch"
)

// Rule names used on aggregated issues.
const (
	RuleRequiredFields          = "Required Fields"
	RuleUnitCompatibility       = "Unit Compatibility"
	RuleCategoryClassification  = "Category Classification"
	RuleUnitCategoryConsistency = "Unit Category Consistency"
	RuleImageConsistency        = "Image Consistency"
)

// Field keys used on missing-field entries and suggestions.
const (
	FieldFrontImage = "front_image"
	FieldBrand      = "brand"
	FieldCategory   = "category"
	FieldUnit       = "unit"
)

// Image issue types emitted by the analyzer.
const (
	ImageIssueContentMismatch     = "content_type_mismatch"
	ImageIssueConceptMismatch     = "concept_mismatch"
	ImageIssueAmbiguousContent    = "ambiguous_content"
	ImageIssueUndeterminedContent = "undetermined_content"
	ImageIssueFormat              = "non_preferred_format"
	ImageIssueRecognitionDown     = "recognition_unavailable"
)

// Issue is one finding recorded against a product.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Suggestion is a remediation hint attached to a specific field.
type Suggestion struct {
	Field            string   `json:"field"`
	Suggestion       string   `json:"suggestion"`
	Importance       Severity `json:"importance"`
	RecommendedUnits []string `json:"recommended_units,omitempty"`
}

// CategoryVerdict is the classifier output for one product.
type CategoryVerdict struct {
	Category          Category  `json:"category"`
	Confidence        float64   `json:"confidence"`
	ExpectedDimension Dimension `json:"expected_dimension"`
	DetectionMethod   string    `json:"detection_method"`
	MatchedPatterns   []string  `json:"matched_patterns,omitempty"`
}

// CompatibilityVerdict is the unit/classification compatibility output.
type CompatibilityVerdict struct {
	Compatible       bool     `json:"compatible"`
	Reason           string   `json:"reason,omitempty"`
	RecommendedUnits []string `json:"recommended_units,omitempty"`
	Confidence       float64  `json:"confidence"`
	DetectionMethod  string   `json:"detection_method"`
}

// ImageIssue is one finding from the image analyzer.
type ImageIssue struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ImageVerdict summarises image consistency for one product.
type ImageVerdict struct {
	IsValid            bool               `json:"is_valid"`
	Confidence         float64            `json:"confidence"`
	ContentConsistency ContentConsistency `json:"content_consistency"`
	Issues             []ImageIssue       `json:"issues,omitempty"`
}

// DetectedConcept is one visual concept reported by the recognition
// service, confidence in [0,1].
type DetectedConcept struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// UnitDescriptor is the resolved view of a unit of measure.
type UnitDescriptor struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Dimension Dimension `json:"dimension"`
}

// ClassificationDescriptor splits a raw classification string into its
// numeric code and free-text description.
type ClassificationDescriptor struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ParseClassification splits raw classification text into code and
// description. The split happens at the first separator only when a
// numeric code precedes it; without a separator, leading digits become
// the code; with no leading digits the whole string is the description.
func ParseClassification(raw string) ClassificationDescriptor {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClassificationDescriptor{}
	}
	if idx := strings.Index(raw, "-"); idx > 0 && allDigits(raw[:idx]) {
		return ClassificationDescriptor{
			Code:        raw[:idx],
			Description: strings.TrimSpace(raw[idx+1:]),
		}
	}
	digits := 0
	for digits < len(raw) && raw[digits] >= '0' && raw[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		return ClassificationDescriptor{
			Code:        raw[:digits],
			Description: strings.TrimSpace(raw[digits:]),
		}
	}
	return ClassificationDescriptor{Description: raw}
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Result is the aggregated verdict for one product.
type Result struct {
	ProductID         int64        `json:"product_id,omitempty"`
	IsValid           bool         `json:"is_valid"`
	VerificationScore int          `json:"verification_score"`
	ConfidenceLevel   int          `json:"confidence_level"`
	Status            Status       `json:"status"`
	Issues            []Issue      `json:"issues"`
	MissingFields     []string     `json:"missing_fields"`
	Suggestions       []Suggestion `json:"suggestions"`
	CheckedAt         time.Time    `json:"checked_at"`
}

// CountBySeverity tallies issues at the given severity.
func (r Result) CountBySeverity(sev Severity) int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			count++
		}
	}
	return count
}

// RunStatus enumerates async batch run lifecycle values.
type RunStatus string

const (
	// RunPending indicates the run is queued and waiting.
	RunPending RunStatus = "PENDING"
	// RunRunning indicates the run is executing.
	RunRunning RunStatus = "RUNNING"
	// RunCompleted indicates every page was verified.
	RunCompleted RunStatus = "COMPLETED"
	// RunFailed indicates an unrecoverable error occurred.
	RunFailed RunStatus = "FAILED"
)

// RunFilters narrows which catalog rows a run covers.
type RunFilters struct {
	Search string `json:"search,omitempty"`
	Brand  string `json:"brand,omitempty"`
}

// Run stores metadata and counters for one batch verification.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Filters    RunFilters `json:"filters"`
	Status     RunStatus  `json:"status"`
	Total      int        `json:"total"`
	Verified   int        `json:"verified"`
	Unverified int        `json:"unverified"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// StoredResult is a persisted per-product verdict within a run.
type StoredResult struct {
	ID          int64     `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Status      Status    `json:"status"`
	Result      Result    `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	// ErrRunNotFound occurs when a run id cannot be resolved.
	ErrRunNotFound = errors.New("verify: run not found")
	// ErrRunExists occurs when a run id collides with a stored run.
	ErrRunExists = errors.New("verify: run already exists")
)
