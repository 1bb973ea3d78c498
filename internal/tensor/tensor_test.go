package tensor

import "testing"

func TestNewShapeAndSize(t *testing.T) {
	tt := New(2, 3, 4)
	if got := tt.Size(); got != 24 {
		t.Fatalf("Size: got %d, want 24", got)
	}
	shape := tt.Shape()
	shape[0] = 99
	if tt.Dim(0) != 2 {
		t.Error("Shape must return a copy")
	}
}

func TestAtSetRowMajor(t *testing.T) {
	tt := New(2, 3)
	tt.Set(5, 1, 2)
	if got := tt.At(1, 2); got != 5 {
		t.Fatalf("At(1,2): got %v, want 5", got)
	}
	// Row-major: element (1,2) of a 2x3 tensor is flat index 5.
	if got := tt.Data()[5]; got != 5 {
		t.Fatalf("flat layout: got %v at index 5", got)
	}
}

func TestReshapeSharesData(t *testing.T) {
	tt := New(2, 6)
	v := tt.Reshape(3, 4)
	v.Set(7, 0, 1)
	if got := tt.At(0, 1); got != 7 {
		t.Fatalf("reshape must share data: got %v", got)
	}
}

func TestReshapeBadSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on size-changing reshape")
		}
	}()
	New(2, 3).Reshape(4, 2)
}

func TestCloneIsIndependent(t *testing.T) {
	a := New(4)
	a.Data()[0] = 1
	b := a.Clone()
	b.Data()[0] = 2
	if a.Data()[0] != 1 {
		t.Error("clone must not alias the original")
	}
}

func TestArgMax(t *testing.T) {
	tt := FromSlice([]float32{0.1, 0.7, 0.2}, 1, 3)
	if got := tt.ArgMax(); got != 1 {
		t.Fatalf("ArgMax: got %d, want 1", got)
	}
}
