package verify

import "testing"

func TestClassifyCategory(t *testing.T) {
	cases := []struct {
		name           string
		productName    string
		brand          string
		classification string
		wantCategory   Category
		wantDimension  Dimension
		wantMethod     string
		minConfidence  float64
	}{
		{
			name:           "automotive context rule",
			productName:    "PROMAX SP 0W16",
			brand:          "SAMA OIL",
			classification: "20002871-Type of Engine Oil Target",
			wantCategory:   CategoryOil,
			wantDimension:  DimensionVolume,
			wantMethod:     methodContextRule,
			minConfidence:  90,
		},
		{
			name:          "viscosity grade alone",
			productName:   "Grade 5W30 Premium",
			wantCategory:  CategoryOil,
			wantDimension: DimensionVolume,
			wantMethod:    methodContextRule,
			minConfidence: 90,
		},
		{
			name:          "api service class",
			productName:   "Lube API SN Plus",
			wantCategory:  CategoryOil,
			wantDimension: DimensionVolume,
			wantMethod:    methodContextRule,
			minConfidence: 90,
		},
		{
			name:          "laundry context rule",
			productName:   "Brite Washing Powder",
			wantCategory:  CategoryCleaning,
			wantDimension: DimensionWeight,
			wantMethod:    methodContextRule,
			minConfidence: 90,
		},
		{
			name:          "edible oil context rule",
			productName:   "Golden Olive Oil Extra Virgin",
			wantCategory:  CategoryFood,
			wantDimension: DimensionVolume,
			wantMethod:    methodContextRule,
			minConfidence: 90,
		},
		{
			name:          "phrase vote",
			productName:   "Mobile Phone X12",
			wantCategory:  CategoryElectronics,
			wantDimension: DimensionQuantity,
			wantMethod:    methodPhraseMatch,
			minConfidence: 80,
		},
		{
			name:          "keyword scoring",
			productName:   "Sunsilk Shampoo 170ML",
			wantCategory:  CategoryCosmetics,
			wantDimension: DimensionQuantity,
			wantMethod:    methodKeywordScore,
			minConfidence: 40,
		},
		{
			name:          "keyword scoring beverage",
			productName:   "Orange Juice Concentrate",
			wantCategory:  CategoryBeverage,
			wantDimension: DimensionVolume,
			wantMethod:    methodKeywordScore,
			minConfidence: 40,
		},
		{
			name:          "wash override forces cleaning",
			productName:   "Ultra Wash Soap Bar",
			wantCategory:  CategoryCleaning,
			wantDimension: DimensionVolume,
			wantMethod:    methodOverride,
			minConfidence: 80,
		},
		{
			name:          "wash override powder implies weight",
			productName:   "Maxi Wash Powder Sachet",
			wantCategory:  CategoryCleaning,
			wantDimension: DimensionWeight,
			wantMethod:    methodOverride,
			minConfidence: 80,
		},
		{
			name:          "no signal",
			productName:   "Wooden Chair",
			wantCategory:  CategoryNone,
			wantDimension: DimensionUnknown,
			wantMethod:    methodNone,
		},
		{
			name:          "empty input",
			wantCategory:  CategoryNone,
			wantDimension: DimensionUnknown,
			wantMethod:    methodNone,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyCategory(tt.productName, tt.brand, tt.classification)
			if got.Category != tt.wantCategory {
				t.Fatalf("category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.ExpectedDimension != tt.wantDimension {
				t.Fatalf("dimension = %s, want %s", got.ExpectedDimension, tt.wantDimension)
			}
			if got.DetectionMethod != tt.wantMethod {
				t.Fatalf("method = %s, want %s", got.DetectionMethod, tt.wantMethod)
			}
			if got.Confidence < tt.minConfidence {
				t.Fatalf("confidence = %.1f, want at least %.1f", got.Confidence, tt.minConfidence)
			}
			if got.Confidence < 0 || got.Confidence > 100 {
				t.Fatalf("confidence %.1f outside [0,100]", got.Confidence)
			}
		})
	}
}

func TestClassifyCategoryViscosityBeatsSurroundings(t *testing.T) {
	// A viscosity grade is an unambiguous lubricant signature even in
	// otherwise misleading text.
	got := ClassifyCategory("Kitchen Helper 10W-40 Special", "", "")
	if got.Category != CategoryOil {
		t.Fatalf("category = %s, want %s", got.Category, CategoryOil)
	}
	if got.Confidence < 90 {
		t.Fatalf("confidence = %.1f, want at least 90", got.Confidence)
	}
}

func TestClassifyCategoryDeterministic(t *testing.T) {
	first := ClassifyCategory("Dish Soap Lemon", "CleanCo", "")
	for i := 0; i < 20; i++ {
		got := ClassifyCategory("Dish Soap Lemon", "CleanCo", "")
		if got.Category != first.Category || got.Confidence != first.Confidence || got.DetectionMethod != first.DetectionMethod {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestClassifyCategoryNameBonus(t *testing.T) {
	inName := ClassifyCategory("Lubricant Supreme", "", "")
	inClassification := ClassifyCategory("Supreme", "", "Lubricant")
	if inName.Category != CategoryOil || inClassification.Category != CategoryOil {
		t.Fatalf("categories = %s / %s, want both %s", inName.Category, inClassification.Category, CategoryOil)
	}
	if inName.Confidence <= inClassification.Confidence {
		t.Fatalf("name hit confidence %.1f not above classification hit %.1f", inName.Confidence, inClassification.Confidence)
	}
}
