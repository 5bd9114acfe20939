package kmeans

import (
	"math"

	"github.com/hupe1980/elkan/distance"
	"github.com/hupe1980/elkan/internal/queue"
)

// Nearest returns the index of the closest center and its distance.
// Ties resolve to the lowest index. It returns -1 for no centers.
func Nearest(vec []float32, centers [][]float32) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for c, center := range centers {
		if d := distance.L2(vec, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// NearestN returns the indices of the n closest centers, nearest first.
// Ties resolve to the lower index.
func NearestN(vec []float32, centers [][]float32, n int) []int {
	n = min(n, len(centers))
	if n <= 0 {
		return nil
	}

	pq := queue.NewMax(n + 1)
	for c, center := range centers {
		pq.PushItem(queue.PriorityQueueItem{Node: c, Distance: distance.L2(vec, center)})
		if pq.Len() > n {
			pq.PopItem()
		}
	}

	out := make([]int, n)
	for i := n - 1; i >= 0; i-- {
		item, _ := pq.PopItem()
		out[i] = item.Node
	}
	return out
}
