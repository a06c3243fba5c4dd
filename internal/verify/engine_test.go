package verify

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/verity-catalog/verity-catalog/internal/catalog"
)

func testEngine() *Engine {
	e := NewEngine(nil)
	e.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return e
}

func validProduct() catalog.ProductRecord {
	return catalog.ProductRecord{
		ID:             41,
		Name:           "PROMAX SP 0W16",
		BrandName:      "SAMA OIL",
		UnitCode:       "LTR",
		Classification: "20002871-Type of Engine Oil Target",
		ImageRef:       "front-oil-bottle.jpg",
	}
}

func TestVerifyCompleteProduct(t *testing.T) {
	e := testEngine()
	got := e.Verify(Input{Product: validProduct()})

	if got.Status != StatusVerified {
		t.Fatalf("status = %s, want %s (issues %+v)", got.Status, StatusVerified, got.Issues)
	}
	if !got.IsValid {
		t.Fatal("isValid = false")
	}
	if got.VerificationScore != 100 {
		t.Fatalf("score = %d, want 100", got.VerificationScore)
	}
	if got.ConfidenceLevel != 90 {
		t.Fatalf("confidence = %d, want 90", got.ConfidenceLevel)
	}
	if len(got.Issues) != 0 || len(got.MissingFields) != 0 || len(got.Suggestions) != 0 {
		t.Fatalf("expected clean result, got %+v", got)
	}
	if got.ProductID != 41 {
		t.Fatalf("productID = %d, want 41", got.ProductID)
	}
}

func TestVerifyIncompatibleUnit(t *testing.T) {
	e := testEngine()
	product := validProduct()
	product.UnitCode = "PC"
	got := e.Verify(Input{Product: product})

	if got.Status != StatusUnverified {
		t.Fatalf("status = %s, want %s", got.Status, StatusUnverified)
	}
	if len(got.Issues) != 1 {
		t.Fatalf("issues = %d, want exactly 1: %+v", len(got.Issues), got.Issues)
	}
	issue := got.Issues[0]
	if issue.Rule != RuleUnitCompatibility || issue.Severity != SeverityHigh {
		t.Fatalf("issue = %+v, want high %s", issue, RuleUnitCompatibility)
	}
	if len(got.Suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1: %+v", len(got.Suggestions), got.Suggestions)
	}
	if !reflect.DeepEqual(got.Suggestions[0].RecommendedUnits, []string{"L", "ML", "LTR"}) {
		t.Fatalf("recommended = %v, want [L ML LTR]", got.Suggestions[0].RecommendedUnits)
	}
	if got.VerificationScore != 80 {
		t.Fatalf("score = %d, want 80", got.VerificationScore)
	}
}

func TestVerifyMissingImage(t *testing.T) {
	e := testEngine()
	product := validProduct()
	product.ImageRef = ""
	got := e.Verify(Input{Product: product})

	if got.Status != StatusUnverified {
		t.Fatalf("status = %s, want %s", got.Status, StatusUnverified)
	}
	found := false
	for _, field := range got.MissingFields {
		if field == FieldFrontImage {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing fields %v lack %s", got.MissingFields, FieldFrontImage)
	}
	if got.CountBySeverity(SeverityCritical) != 1 {
		t.Fatalf("critical issues = %d, want 1", got.CountBySeverity(SeverityCritical))
	}
	suggested := false
	for _, s := range got.Suggestions {
		if s.Field == FieldFrontImage && s.Importance == SeverityCritical {
			suggested = true
		}
	}
	if !suggested {
		t.Fatalf("no critical image suggestion in %+v", got.Suggestions)
	}
}

func TestVerifyAllFieldsMissing(t *testing.T) {
	e := testEngine()
	got := e.Verify(Input{Product: catalog.ProductRecord{ID: 7, Name: "Nameless"}})

	if len(got.MissingFields) != 4 {
		t.Fatalf("missing fields = %v, want all four", got.MissingFields)
	}
	if got.CountBySeverity(SeverityCritical) != 4 {
		t.Fatalf("critical issues = %d, want 4", got.CountBySeverity(SeverityCritical))
	}
	if got.VerificationScore != 0 {
		t.Fatalf("score = %d, want floor 0", got.VerificationScore)
	}
	if got.ConfidenceLevel != 95 {
		t.Fatalf("confidence = %d, want cap 95", got.ConfidenceLevel)
	}
}

func TestVerifyUnrelatedImage(t *testing.T) {
	e := testEngine()
	product := validProduct()
	product.ImageRef = "dog-playing-park.jpg"
	got := e.Verify(Input{Product: product})

	if got.Status != StatusUnverified {
		t.Fatalf("status = %s, want %s", got.Status, StatusUnverified)
	}
	critical := false
	for _, issue := range got.Issues {
		if issue.Rule == RuleImageConsistency && issue.Severity == SeverityCritical {
			critical = true
		}
	}
	if !critical {
		t.Fatalf("no critical image issue in %+v", got.Issues)
	}
	customerFacing := false
	for _, s := range got.Suggestions {
		if s.Field == FieldFrontImage && strings.Contains(s.Suggestion, "replace the photo") {
			customerFacing = true
		}
	}
	if !customerFacing {
		t.Fatalf("no customer facing replacement suggestion in %+v", got.Suggestions)
	}
}

func TestVerifyRecognizedForeignConcept(t *testing.T) {
	e := testEngine()
	got := e.Verify(Input{
		Product:  validProduct(),
		Concepts: []DetectedConcept{{Name: "dog", Confidence: 0.97}},
	})

	if got.Status != StatusUnverified {
		t.Fatalf("status = %s, want %s", got.Status, StatusUnverified)
	}
	if got.CountBySeverity(SeverityCritical) != 1 {
		t.Fatalf("critical issues = %d, want 1: %+v", got.CountBySeverity(SeverityCritical), got.Issues)
	}
}

func TestVerifyRecognitionOutageStaysVerified(t *testing.T) {
	e := testEngine()
	got := e.Verify(Input{Product: validProduct(), RecognitionFailed: true})

	if got.Status != StatusVerified {
		t.Fatalf("status = %s, want %s (issues %+v)", got.Status, StatusVerified, got.Issues)
	}
	if got.VerificationScore != 100 {
		t.Fatalf("score = %d, want 100", got.VerificationScore)
	}
}

func TestVerifyClassificationFamilyMismatch(t *testing.T) {
	e := testEngine()
	product := validProduct()
	product.Name = "Chocolate Wafer Snack"
	product.BrandName = "SweetCo"
	got := e.Verify(Input{Product: product})

	if got.Status != StatusUnverified {
		t.Fatalf("status = %s, want %s", got.Status, StatusUnverified)
	}
	found := false
	for _, issue := range got.Issues {
		if issue.Rule == RuleCategoryClassification && issue.Severity == SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("no category mismatch issue in %+v", got.Issues)
	}
}

func TestVerifyUnitDisagreesWithCategory(t *testing.T) {
	e := testEngine()
	product := validProduct()
	product.Classification = "General Merchandise"
	product.UnitCode = "PC"
	got := e.Verify(Input{Product: product})

	found := false
	for _, issue := range got.Issues {
		if issue.Rule == RuleUnitCategoryConsistency && issue.Severity == SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("no unit category issue in %+v", got.Issues)
	}
	recommended := false
	for _, s := range got.Suggestions {
		if s.Field == FieldUnit && reflect.DeepEqual(s.RecommendedUnits, []string{"L", "ML", "LTR"}) {
			recommended = true
		}
	}
	if !recommended {
		t.Fatalf("no volume recommendation in %+v", got.Suggestions)
	}
}

func TestVerifyGenericSuggestionWhenNoneCollected(t *testing.T) {
	e := testEngine()
	// A bland name against an unrelated classification trips only the
	// vocabulary overlap check, which carries its own suggestion, so
	// build a result with a synthetic high issue instead.
	res := Result{Issues: []Issue{{Rule: RuleCategoryClassification, Severity: SeverityHigh, Message: "x"}}}
	e.finalize(&res)
	if len(res.Suggestions) != 1 || res.Suggestions[0].Field != "general" {
		t.Fatalf("generic suggestion missing, got %+v", res.Suggestions)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	e := testEngine()
	in := Input{Product: validProduct()}

	first := e.Verify(in)
	second := e.Verify(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("verdicts diverged:\n%+v\n%+v", first, second)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("serialized verdicts diverged:\n%s\n%s", a, b)
	}
}

func TestVerifyMonotonicity(t *testing.T) {
	e := testEngine()
	strip := []struct {
		name   string
		remove func(*catalog.ProductRecord)
	}{
		{"image", func(p *catalog.ProductRecord) { p.ImageRef = "" }},
		{"brand", func(p *catalog.ProductRecord) { p.BrandName = "" }},
		{"unit", func(p *catalog.ProductRecord) { p.UnitCode = "" }},
		{"classification", func(p *catalog.ProductRecord) { p.Classification = "" }},
	}

	product := validProduct()
	prev := e.Verify(Input{Product: product})
	if prev.Status != StatusVerified {
		t.Fatalf("baseline not verified: %+v", prev.Issues)
	}
	for i, step := range strip {
		step.remove(&product)
		got := e.Verify(Input{Product: product})
		if got.VerificationScore > prev.VerificationScore {
			t.Fatalf("removing %s raised score from %d to %d", step.name, prev.VerificationScore, got.VerificationScore)
		}
		if got.Status == StatusVerified {
			t.Fatalf("verified with %d fields missing", i+1)
		}
		if len(got.MissingFields) != i+1 {
			t.Fatalf("missing fields = %v after removing %d", got.MissingFields, i+1)
		}
		prev = got
	}
}

func TestTextsShareVocabulary(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"direct overlap", "Engine Oil Premium", "Type of Engine Oil Target", true},
		{"related terms bridge", "Lubricant Pro", "Engine Oil", true},
		{"fuzzy inflection", "Noodle Cup", "Instant Noodles", true},
		{"no overlap", "Chocolate Wafer", "Engine Oil", false},
		{"empty side stays silent", "", "Engine Oil", true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := textsShareVocabulary(tt.a, tt.b); got != tt.want {
				t.Fatalf("share(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
