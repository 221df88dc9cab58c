package testutil

import (
	"errors"
	"math"
	"testing"
)

func TestAssertNoError_Nil(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestAssertError_NonNil(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("boom"))
	if fakeT.Failed() {
		t.Error("expected no failure for non-nil error")
	}
}

func TestPulse(t *testing.T) {
	tbl := Pulse(10, 3)
	if tbl.Len() != 30 {
		t.Fatalf("expected 30 rows, got %d", tbl.Len())
	}
	active := 0
	for _, m := range tbl.Floats("m") {
		if m == 1 {
			active++
		}
	}
	if active != 18 {
		t.Errorf("expected 18 active rows, got %d", active)
	}
}

func TestTwoGroups(t *testing.T) {
	tbl := TwoGroups()
	if tbl.Len() != 70 {
		t.Fatalf("expected 70 rows, got %d", tbl.Len())
	}
	if got := len(tbl.Unique("id")); got != 7 {
		t.Errorf("expected 7 objects, got %d", got)
	}
}

func TestWithMissing(t *testing.T) {
	base := Pulse(2, 2)
	tbl := WithMissing(base, 1)
	if !math.IsNaN(tbl.Floats("m")[1]) {
		t.Error("expected NaN measurement in row 1")
	}
	if math.IsNaN(base.Floats("m")[1]) {
		t.Error("fixture must not be modified")
	}
}
