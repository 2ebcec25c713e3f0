package culling

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cullingVisibleCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_visible_cells",
		Help:    "The number of cells returned by a visibility query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	cullingVisitedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "culling_visited_nodes",
		Help:    "The number of quadtree nodes tested by a visibility query.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

func instrumentCellList(l CellList) {
	cullingVisibleCells.Observe(float64(l.CellCount()))
	cullingVisitedNodes.Observe(float64(l.Visited))
}
