package traj

import (
	"math"
	"testing"
)

func TestDimsLayout(t *testing.T) {
	d := Dims{N: 11, NX: 2, NU: 1}
	if d.NUAug() != 1 {
		t.Errorf("plain layout: expected nuAug=1, got %d", d.NUAug())
	}
	if _, ok := d.SlackBlock(); ok {
		t.Error("plain layout should have no slack block")
	}
	if _, ok := d.TimeIndex(); ok {
		t.Error("plain layout should have no time index")
	}

	d.Infeasible = true
	d.MinTime = true
	if d.NUAug() != 4 {
		t.Errorf("augmented layout: expected nuAug=4, got %d", d.NUAug())
	}
	slack, ok := d.SlackBlock()
	if !ok || slack.Lo != 1 || slack.Hi != 3 {
		t.Errorf("expected slack block [1,3), got %+v", slack)
	}
	tau, ok := d.TimeIndex()
	if !ok || tau != 3 {
		t.Errorf("expected time index 3, got %d", tau)
	}
}

func TestStepDuration(t *testing.T) {
	d := Dims{N: 3, NX: 2, NU: 1, MinTime: true}
	tr := New(d, 0.04)

	// time slack seeded with sqrt(dt)
	if math.Abs(tr.StepDuration(0)-0.04) > 1e-12 {
		t.Errorf("expected step duration 0.04, got %f", tr.StepDuration(0))
	}

	tau, _ := d.TimeIndex()
	tr.U[1].SetVec(tau, 0.1)
	if math.Abs(tr.StepDuration(1)-0.01) > 1e-12 {
		t.Errorf("expected step duration h^2=0.01, got %f", tr.StepDuration(1))
	}
	if math.Abs(tr.TotalTime()-0.05) > 1e-12 {
		t.Errorf("expected total time 0.05, got %f", tr.TotalTime())
	}
}

func TestRangeView(t *testing.T) {
	d := Dims{N: 2, NX: 2, NU: 2, Infeasible: true}
	tr := New(d, 0.1)
	slack, _ := d.SlackBlock()

	view := slack.Of(tr.U[0])
	view.SetVec(0, 7)
	if tr.U[0].AtVec(2) != 7 {
		t.Error("range view should share memory with the underlying vector")
	}
	if tr.TrueControl(0).Len() != 2 {
		t.Errorf("true control view has wrong length %d", tr.TrueControl(0).Len())
	}
}

func TestCloneIndependent(t *testing.T) {
	d := Dims{N: 3, NX: 1, NU: 1}
	tr := New(d, 0.1)
	tr.X[0].SetVec(0, 1)

	c := tr.Clone()
	c.X[0].SetVec(0, 2)
	if tr.X[0].AtVec(0) != 1 {
		t.Error("clone should not alias the original")
	}
	if !tr.IsValid() {
		t.Error("finite trajectory reported invalid")
	}
	tr.X[1].SetVec(0, math.NaN())
	if tr.IsValid() {
		t.Error("NaN trajectory reported valid")
	}
}
