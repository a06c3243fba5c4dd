package verify

import "testing"

func TestAnalyzeImageFilenamePhase(t *testing.T) {
	cases := []struct {
		name            string
		input           ImageAnalysisInput
		wantValid       bool
		wantConsistency ContentConsistency
		wantIssueType   string
	}{
		{
			name: "packaging words match category",
			input: ImageAnalysisInput{
				ImageRef:    "front-oil-bottle.jpg",
				ProductName: "PROMAX SP 0W16",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentConsistent,
		},
		{
			name: "product name words in file name",
			input: ImageAnalysisInput{
				ImageRef:    "promax-front-view.jpg",
				ProductName: "PROMAX SP 0W16",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentConsistent,
		},
		{
			name: "unrelated animal and landscape content",
			input: ImageAnalysisInput{
				ImageRef:    "dog-playing-park.jpg",
				ProductName: "Motor Oils",
				Category:    CategoryOil,
			},
			wantValid:       false,
			wantConsistency: ContentMismatch,
			wantIssueType:   ImageIssueContentMismatch,
		},
		{
			name: "vehicle photo acceptable for lubricants",
			input: ImageAnalysisInput{
				ImageRef:    "car-engine-oil.jpg",
				ProductName: "Motor Oils",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentConsistent,
		},
		{
			name: "meaningless tokens are ambiguous",
			input: ImageAnalysisInput{
				ImageRef:    "img-final-copy.jpg",
				ProductName: "PROMAX SP 0W16",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentAmbiguous,
			wantIssueType:   ImageIssueAmbiguousContent,
		},
		{
			name: "numeric only name is undetermined",
			input: ImageAnalysisInput{
				ImageRef:    "20240101.jpg",
				ProductName: "PROMAX SP 0W16",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentUndetermined,
			wantIssueType:   ImageIssueUndeterminedContent,
		},
		{
			name: "non preferred format noted",
			input: ImageAnalysisInput{
				ImageRef:    "front-oil-bottle.bmp",
				ProductName: "PROMAX SP 0W16",
				Category:    CategoryOil,
			},
			wantValid:       true,
			wantConsistency: ContentConsistent,
			wantIssueType:   ImageIssueFormat,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeImage(tt.input)
			if got.IsValid != tt.wantValid {
				t.Fatalf("isValid = %v, want %v (issues %+v)", got.IsValid, tt.wantValid, got.Issues)
			}
			if got.ContentConsistency != tt.wantConsistency {
				t.Fatalf("consistency = %s, want %s", got.ContentConsistency, tt.wantConsistency)
			}
			if tt.wantIssueType != "" {
				found := false
				for _, issue := range got.Issues {
					if issue.Type == tt.wantIssueType {
						found = true
					}
				}
				if !found {
					t.Fatalf("issue %s not reported, got %+v", tt.wantIssueType, got.Issues)
				}
			}
			if got.Confidence < 0 || got.Confidence > 100 {
				t.Fatalf("confidence %.1f outside [0,100]", got.Confidence)
			}
		})
	}
}

func TestAnalyzeImageMismatchPenalty(t *testing.T) {
	clean := AnalyzeImage(ImageAnalysisInput{
		ImageRef:    "front-oil-bottle.jpg",
		ProductName: "Motor Oils",
		Category:    CategoryOil,
	})
	dirty := AnalyzeImage(ImageAnalysisInput{
		ImageRef:    "dog-playing-park.jpg",
		ProductName: "Motor Oils",
		Category:    CategoryOil,
	})
	if clean.Confidence != 100 {
		t.Fatalf("clean confidence = %.1f, want 100", clean.Confidence)
	}
	if dirty.Confidence >= clean.Confidence {
		t.Fatalf("mismatch confidence %.1f not below clean %.1f", dirty.Confidence, clean.Confidence)
	}
}

func TestAnalyzeImageConceptPhase(t *testing.T) {
	base := ImageAnalysisInput{
		ImageRef:          "promax-pack.jpg",
		ProductName:       "PROMAX SP 0W16",
		Classification:    "20002871-Type of Engine Oil Target",
		Category:          CategoryOil,
		ExpectedDimension: DimensionVolume,
	}

	t.Run("matching concepts validate", func(t *testing.T) {
		in := base
		in.Concepts = []DetectedConcept{
			{Name: "bottle", Confidence: 0.95},
			{Name: "container", Confidence: 0.9},
		}
		got := AnalyzeImage(in)
		if !got.IsValid {
			t.Fatalf("isValid = false, issues %+v", got.Issues)
		}
		if got.ContentConsistency != ContentConsistent {
			t.Fatalf("consistency = %s, want %s", got.ContentConsistency, ContentConsistent)
		}
	})

	t.Run("foreign concepts fail", func(t *testing.T) {
		in := base
		in.Concepts = []DetectedConcept{
			{Name: "tree", Confidence: 0.9},
			{Name: "grass", Confidence: 0.85},
		}
		got := AnalyzeImage(in)
		if got.IsValid {
			t.Fatal("isValid = true for foreign concepts")
		}
		found := false
		for _, issue := range got.Issues {
			if issue.Type == ImageIssueConceptMismatch && issue.Severity == SeverityHigh {
				found = true
			}
		}
		if !found {
			t.Fatalf("concept mismatch issue missing, got %+v", got.Issues)
		}
	})

	t.Run("recognized banned subject is critical", func(t *testing.T) {
		in := base
		in.Concepts = []DetectedConcept{{Name: "dog", Confidence: 0.97}}
		got := AnalyzeImage(in)
		if got.IsValid {
			t.Fatal("isValid = true for recognized animal")
		}
		if got.ContentConsistency != ContentMismatch {
			t.Fatalf("consistency = %s, want %s", got.ContentConsistency, ContentMismatch)
		}
		if len(got.Issues) == 0 || got.Issues[0].Type != ImageIssueContentMismatch {
			t.Fatalf("want leading %s issue, got %+v", ImageIssueContentMismatch, got.Issues)
		}
	})

	t.Run("recognition outage degrades softly", func(t *testing.T) {
		in := base
		in.ImageRef = "front-oil-bottle.jpg"
		in.RecognitionFailed = true
		got := AnalyzeImage(in)
		if !got.IsValid {
			t.Fatalf("isValid = false, issues %+v", got.Issues)
		}
		found := false
		for _, issue := range got.Issues {
			if issue.Type == ImageIssueRecognitionDown && issue.Severity == SeverityLow {
				found = true
			}
		}
		if !found {
			t.Fatalf("recognition issue missing, got %+v", got.Issues)
		}
		if got.Confidence != 95 {
			t.Fatalf("confidence = %.1f, want 95", got.Confidence)
		}
	})
}

func TestExpectedConceptsComposition(t *testing.T) {
	got := expectedConcepts("PROMAX SP 0W16", "20002871-Type of Engine Oil Target", CategoryOil, DimensionVolume)
	want := map[string]bool{"promax": true, "bottle": true, "oil": true, "engine": true, "automotive": true}
	gotSet := make(map[string]bool, len(got))
	for _, term := range got {
		gotSet[term] = true
	}
	for term := range want {
		if !gotSet[term] {
			t.Fatalf("expected concept %q missing from %v", term, got)
		}
	}
	seen := make(map[string]bool)
	for _, term := range got {
		if seen[term] {
			t.Fatalf("duplicate concept %q in %v", term, got)
		}
		seen[term] = true
	}
}

func TestSplitImageRef(t *testing.T) {
	cases := []struct {
		name     string
		ref      string
		wantBase string
		wantExt  string
	}{
		{"plain file", "front-oil-bottle.jpg", "front-oil-bottle", "jpg"},
		{"url with query", "https://cdn.example.com/p/front-oil-bottle.png?v=2", "front-oil-bottle", "png"},
		{"windows path", `C:\images\promax-pack.JPG`, "promax-pack", "jpg"},
		{"no extension", "frontimage", "frontimage", ""},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			base, ext := splitImageRef(tt.ref)
			if base != tt.wantBase || ext != tt.wantExt {
				t.Fatalf("splitImageRef(%q) = (%q, %q), want (%q, %q)", tt.ref, base, ext, tt.wantBase, tt.wantExt)
			}
		})
	}
}
