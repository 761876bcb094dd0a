package vecmath

import "testing"

func TestDBSCAN_TwoClusters(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0}, {0.99, 0.01, 0}, {0.98, 0.02, 0},
		{0, 1, 0}, {0.01, 0.99, 0}, {0.02, 0.98, 0},
	}
	labels := DBSCAN(vecs, 0.02, 2)

	for i := 1; i < 3; i++ {
		if labels[i] != labels[0] {
			t.Fatalf("expected points 0-2 in same cluster, got labels %v", labels)
		}
	}
	for i := 4; i < 6; i++ {
		if labels[i] != labels[3] {
			t.Fatalf("expected points 3-5 in same cluster, got labels %v", labels)
		}
	}
	if labels[0] == labels[3] {
		t.Fatalf("expected two distinct clusters, got labels %v", labels)
	}
}

func TestDBSCAN_MinPointsTwoFormsGenuinePair(t *testing.T) {
	vecs := [][]float32{{1, 0, 0}, {0.999, 0.001, 0}, {0, 1, 0}}
	labels := DBSCAN(vecs, 0.01, 2)
	if labels[0] == -1 || labels[1] == -1 {
		t.Fatalf("expected a 2-point neighborhood to qualify as core with MinPoints=2, got labels %v", labels)
	}
	if labels[0] != labels[1] {
		t.Fatalf("expected points 0-1 in the same cluster, got labels %v", labels)
	}
	if labels[2] != -1 {
		t.Fatalf("expected the isolated third point to remain noise, got labels %v", labels)
	}
}

func TestDBSCAN_AllNoise(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}, {-1, 0}}
	labels := DBSCAN(vecs, 0.01, 2)
	for _, l := range labels {
		if l != -1 {
			t.Fatalf("expected all noise, got labels %v", labels)
		}
	}
}

func TestDBSCAN_Empty(t *testing.T) {
	labels := DBSCAN(nil, 0.3, 2)
	if len(labels) != 0 {
		t.Fatalf("expected empty result, got %v", labels)
	}
}
