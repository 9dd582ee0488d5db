package voiceasset

import (
	"math"
	"testing"
)

func TestBlendWeightedPreservesEnergy(t *testing.T) {
	a := &Asset{Name: "a", Rows: 2, Matrix: floatSlice(2*vectorDim, 1.0)}
	b := &Asset{Name: "b", Rows: 2, Matrix: floatSlice(2*vectorDim, 3.0)}

	blended, err := BlendWeighted([]*Asset{a, b}, []float64{1, 1})
	if err != nil {
		t.Fatalf("BlendWeighted: %v", err)
	}

	wantNorm := 0.5*frobeniusNorm(a.Matrix) + 0.5*frobeniusNorm(b.Matrix)
	gotNorm := frobeniusNorm(blended.Matrix)
	if math.Abs(gotNorm-wantNorm) > 1e-3 {
		t.Errorf("blended norm = %v, want %v", gotNorm, wantNorm)
	}
}

func TestBlendWeightedNormalizesWeights(t *testing.T) {
	a := &Asset{Name: "a", Rows: 1, Matrix: floatSlice(vectorDim, 2.0)}
	b := &Asset{Name: "b", Rows: 1, Matrix: floatSlice(vectorDim, 2.0)}

	out1, err := BlendWeighted([]*Asset{a, b}, []float64{1, 1})
	if err != nil {
		t.Fatalf("BlendWeighted: %v", err)
	}
	out2, err := BlendWeighted([]*Asset{a, b}, []float64{5, 5})
	if err != nil {
		t.Fatalf("BlendWeighted: %v", err)
	}
	for i := range out1.Matrix {
		if math.Abs(float64(out1.Matrix[i]-out2.Matrix[i])) > 1e-4 {
			t.Errorf("weight scaling changed result at %d: %v vs %v", i, out1.Matrix[i], out2.Matrix[i])
		}
	}
}

func TestBlendWeightedShapeMismatch(t *testing.T) {
	a := &Asset{Name: "a", Rows: 2, Matrix: floatSlice(2*vectorDim, 1.0)}
	b := &Asset{Name: "b", Rows: 3, Matrix: floatSlice(3*vectorDim, 1.0)}

	if _, err := BlendWeighted([]*Asset{a, b}, []float64{1, 1}); err == nil {
		t.Error("expected an error for mismatched shapes")
	}
}

func TestBlendWeightedRejectsEmpty(t *testing.T) {
	if _, err := BlendWeighted(nil, nil); err == nil {
		t.Error("expected an error for empty input")
	}
}

func TestBlendWeightedRejectsNonPositiveWeightSum(t *testing.T) {
	a := &Asset{Name: "a", Rows: 1, Matrix: floatSlice(vectorDim, 1.0)}
	if _, err := BlendWeighted([]*Asset{a}, []float64{0}); err == nil {
		t.Error("expected an error for zero weight sum")
	}
}
