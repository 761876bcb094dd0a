package vecmath

// DBSCAN clusters vecs by cosine distance (1 - cosine similarity) using the
// standard density-based algorithm: a point is a core point if at least
// minPts points, the point itself included, fall within eps distance of it
// (at least minPts-1 other points); clusters grow by
// transitively absorbing reachable points. Returns a cluster label per
// vector, 0-indexed, with -1 marking noise (unassigned to any cluster).
func DBSCAN(vecs [][]float32, eps float64, minPts int) []int {
	n := len(vecs)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return labels
	}
	if minPts < 1 {
		minPts = 1
	}

	visited := make([]bool, n)
	cluster := -1

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		// regionQuery excludes the point itself, so a core point's neighborhood
		// (self included) reaches minPts once len(neighbors) >= minPts-1.
		neighbors := regionQuery(vecs, i, eps)
		if len(neighbors) < minPts-1 {
			continue // stays noise (-1) unless later absorbed by another core point
		}

		cluster++
		labels[i] = cluster
		seeds := append([]int(nil), neighbors...)

		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if !visited[j] {
				visited[j] = true
				jNeighbors := regionQuery(vecs, j, eps)
				if len(jNeighbors) >= minPts-1 {
					seeds = append(seeds, jNeighbors...)
				}
			}
			if labels[j] == -1 {
				labels[j] = cluster
			}
		}
	}

	return labels
}

func regionQuery(vecs [][]float32, idx int, eps float64) []int {
	var out []int
	for j := range vecs {
		if j == idx {
			continue
		}
		dist := 1 - Cosine(vecs[idx], vecs[j])
		if dist <= eps {
			out = append(out, j)
		}
	}
	return out
}
