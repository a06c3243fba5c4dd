package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/verity-catalog/verity-catalog/internal/catalog"
	"github.com/verity-catalog/verity-catalog/internal/verify"
)

func benchEngine() *verify.Engine {
	return verify.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func benchInput(id int64) verify.Input {
	return verify.Input{Product: catalog.ProductRecord{
		ID:             id,
		Name:           fmt.Sprintf("PROMAX SP 0W%d", 16+id%4),
		BrandName:      "SAMA OIL",
		UnitCode:       "LTR",
		Classification: "20002871-Type of Engine Oil Target",
		ImageRef:       "front-oil-bottle.jpg",
	}}
}

func BenchmarkEngineVerify(b *testing.B) {
	engine := benchEngine()
	input := benchInput(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Verify(input)
	}
}

func BenchmarkEngineVerifyBatch(b *testing.B) {
	engine := benchEngine()
	inputs := make([]verify.Input, 200)
	for i := range inputs {
		inputs[i] = benchInput(int64(i))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.VerifyBatch(context.Background(), inputs, 8); err != nil {
			b.Fatal(err)
		}
	}
}
