package vecmath

import "testing"

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Cosine(c.a, c.b)
			if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("Cosine(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestCosineMismatchedLength(t *testing.T) {
	got := Cosine([]float32{1, 0}, []float32{1, 0, 0})
	if got != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %v", got)
	}
}

func TestCentroid(t *testing.T) {
	vecs := [][]float32{{1, 1}, {3, 3}}
	got := Centroid(vecs)
	want := []float32{2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Centroid() = %v, want %v", got, want)
		}
	}
}

func TestResizeToDim_TruncatesAndExpands(t *testing.T) {
	if got := ResizeToDim([]float32{1, 2, 3, 4}, 2); len(got) != 2 {
		t.Fatalf("expected truncation to 2 dims, got %v", got)
	}
	got := ResizeToDim([]float32{1, 0}, 4)
	if len(got) != 4 {
		t.Fatalf("expected expansion to 4 dims, got %v", got)
	}
}

func TestUpdateCentroid(t *testing.T) {
	centroid := []float32{0, 0}
	member := []float32{4, 0}
	got := UpdateCentroid(centroid, member, 1)
	want := []float32{2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UpdateCentroid() = %v, want %v", got, want)
		}
	}
}
