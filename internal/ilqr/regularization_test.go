package ilqr

import (
	"errors"
	"math"
	"testing"
)

func TestRegularizationIncrease(t *testing.T) {
	r := Regularization{Rho: 0.5, Scale: 1.6, Min: 1e-8, Max: 1e8}
	if err := r.Increase(); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if math.Abs(r.Rho-0.8) > 1e-15 {
		t.Errorf("rho = %g, want exactly 0.5*1.6", r.Rho)
	}

	// repeated increases compound the rate
	if err := r.Increase(); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if math.Abs(r.Rho-0.8*1.6*1.6) > 1e-12 {
		t.Errorf("rho = %g, want 0.8*1.6^2", r.Rho)
	}
}

func TestRegularizationFloor(t *testing.T) {
	r := Regularization{Scale: 1.6, Min: 1e-8, Max: 1e8}
	if err := r.Increase(); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if r.Rho != r.Min {
		t.Errorf("increase from zero should land on the floor, got %g", r.Rho)
	}
}

func TestRegularizationCeiling(t *testing.T) {
	r := Regularization{Rho: 1e8, Scale: 1.6, Min: 1e-8, Max: 1e8}
	err := r.Increase()
	if !errors.Is(err, ErrRegularizationCeiling) {
		t.Fatalf("expected ceiling error, got %v", err)
	}
}

func TestRegularizationDecreaseSnapsToZero(t *testing.T) {
	r := Regularization{Rho: 1.5e-8, DRho: 1, Scale: 1.6, Min: 1e-8, Max: 1e8}
	r.Decrease()
	if r.Rho != 0 {
		t.Errorf("rho = %g, want snap to zero below the floor", r.Rho)
	}
}

func TestRegularizationPersistsOnResults(t *testing.T) {
	res, tr, c := lqrProblem(t, 5)
	res.Reg.Rho = 0.25
	bp, err := New(res, tr, c, DefaultOptions())
	if err != nil {
		t.Fatalf("new backward pass: %v", err)
	}
	if _, err := bp.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	// a clean sweep decreases exactly once
	want := Regularization{Rho: 0.25, DRho: 1, Scale: 1.6, Min: 1e-8, Max: 1e8}
	want.Decrease()
	if math.Abs(res.Reg.Rho-want.Rho) > 1e-15 {
		t.Errorf("rho after clean sweep = %g, want %g", res.Reg.Rho, want.Rho)
	}
}
