package verify

import (
	"reflect"
	"testing"
)

func TestCheckUnitCompatibility(t *testing.T) {
	cases := []struct {
		name           string
		classification string
		unitCode       string
		unitName       string
		wantCompatible bool
		wantMethod     string
		wantRecommend  []string
	}{
		{
			name:           "engine oil with volume unit",
			classification: "20002871-Type of Engine Oil Target",
			unitCode:       "LTR",
			unitName:       "Liter",
			wantCompatible: true,
			wantMethod:     methodNGramOverride,
		},
		{
			name:           "engine oil with piece unit",
			classification: "20002871-Type of Engine Oil Target",
			unitCode:       "PC",
			unitName:       "Piece",
			wantCompatible: false,
			wantMethod:     methodNGramOverride,
			wantRecommend:  []string{"L", "ML", "LTR"},
		},
		{
			name:           "engine oil with weight unit",
			classification: "Motor Oil Premium",
			unitCode:       "KG",
			unitName:       "Kilogram",
			wantCompatible: false,
			wantMethod:     methodNGramOverride,
			wantRecommend:  []string{"L", "ML", "LTR"},
		},
		{
			name:           "washing powder with weight unit",
			classification: "Washing Powder Concentrate",
			unitCode:       "KG",
			unitName:       "Kilogram",
			wantCompatible: true,
			wantMethod:     methodNGramOverride,
		},
		{
			name:           "washing powder with volume unit",
			classification: "Washing Powder Concentrate",
			unitCode:       "L",
			unitName:       "Liter",
			wantCompatible: false,
			wantMethod:     methodNGramOverride,
			wantRecommend:  []string{"KG", "G", "MG"},
		},
		{
			name:           "vector inference liquid",
			classification: "Liquid Fluid Preparation",
			unitCode:       "ML",
			unitName:       "Milliliter",
			wantCompatible: true,
			wantMethod:     methodVector,
		},
		{
			name:           "keyword fallback bulk goods",
			classification: "Solid Bulk Commodity",
			unitCode:       "L",
			unitName:       "Liter",
			wantCompatible: false,
			wantMethod:     methodKeywordFallback,
			wantRecommend:  []string{"KG", "G", "MG"},
		},
		{
			name:           "no signal stays compatible",
			classification: "General Merchandise",
			unitCode:       "PC",
			unitName:       "Piece",
			wantCompatible: true,
			wantMethod:     methodNone,
		},
		{
			name:           "viscosity grade prohibits rate unit",
			classification: "Grade 5W-40",
			unitCode:       "RPM",
			unitName:       "Revolutions Per Minute",
			wantCompatible: false,
			wantMethod:     methodIndustryRule,
			wantRecommend:  []string{"L", "ML", "LTR"},
		},
		{
			name:           "nonstandard code flagged as format problem",
			classification: "General Merchandise",
			unitCode:       "XYZ",
			unitName:       "Liter",
			wantCompatible: false,
			wantMethod:     methodFormatCheck,
			wantRecommend:  []string{"L", "ML", "LTR"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			unit := ResolveUnit(tt.unitCode, tt.unitName)
			got := CheckUnitCompatibility(tt.classification, unit)
			if got.Compatible != tt.wantCompatible {
				t.Fatalf("compatible = %v, want %v (reason %q)", got.Compatible, tt.wantCompatible, got.Reason)
			}
			if got.DetectionMethod != tt.wantMethod {
				t.Fatalf("method = %s, want %s", got.DetectionMethod, tt.wantMethod)
			}
			if tt.wantRecommend != nil && !reflect.DeepEqual(got.RecommendedUnits, tt.wantRecommend) {
				t.Fatalf("recommended = %v, want %v", got.RecommendedUnits, tt.wantRecommend)
			}
			if got.Confidence < 0 || got.Confidence > 100 {
				t.Fatalf("confidence %.1f outside [0,100]", got.Confidence)
			}
			if !got.Compatible && got.Reason == "" {
				t.Fatal("incompatible verdict without reason")
			}
		})
	}
}

func TestCheckUnitCompatibilityEngineOilInvariant(t *testing.T) {
	// Whatever surrounds it, engine oil text must reject weight units
	// and accept volume units.
	texts := []string{
		"Engine Oil",
		"30001-Engine Oil Synthetic Blend",
		"Special Engine Oil For Heavy Duty Trucks",
	}
	for _, text := range texts {
		if got := CheckUnitCompatibility(text, ResolveUnit("KG", "Kilogram")); got.Compatible {
			t.Fatalf("%q with KG reported compatible", text)
		}
		if got := CheckUnitCompatibility(text, ResolveUnit("L", "Liter")); !got.Compatible {
			t.Fatalf("%q with L reported incompatible: %s", text, got.Reason)
		}
	}
}

func TestCheckUnitCompatibilityDeterministic(t *testing.T) {
	unit := ResolveUnit("PC", "Piece")
	first := CheckUnitCompatibility("Mobile Device Unit", unit)
	for i := 0; i < 20; i++ {
		got := CheckUnitCompatibility("Mobile Device Unit", unit)
		if !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestVectorDimension(t *testing.T) {
	cases := []struct {
		name    string
		tokens  []string
		want    Dimension
		minConf float64
	}{
		{"pure liquid words", []string{"liquid", "fluid"}, DimensionVolume, 0.9},
		{"solid words", []string{"rice", "sugar"}, DimensionWeight, 0.9},
		{"discrete words", []string{"phone", "charger"}, DimensionQuantity, 0.9},
		{"unknown words fall to neutral", []string{"premium", "quality"}, DimensionUnknown, 0},
		{"empty", nil, DimensionUnknown, 0},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			dim, conf := vectorDimension(tt.tokens)
			if dim != tt.want {
				t.Fatalf("dimension = %s, want %s", dim, tt.want)
			}
			if conf < tt.minConf {
				t.Fatalf("confidence = %.3f, want at least %.3f", conf, tt.minConf)
			}
		})
	}
}

func TestKeywordDimensionFraction(t *testing.T) {
	dim, frac := keywordDimension([]string{"bulk", "solid", "goods"})
	if dim != DimensionWeight {
		t.Fatalf("dimension = %s, want %s", dim, DimensionWeight)
	}
	if frac <= 0.6 || frac > 0.7 {
		t.Fatalf("fraction = %.3f, want two thirds", frac)
	}
}
