package quadtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	aggregateLabel  = "aggregate"
	kindLabel       = "kind"
	collectionLabel = "collection"
)

var (
	quadtreeNodeUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_node_updates_total",
		Help: "The number of nodes visited by cell change notifications.",
	}, []string{aggregateLabel})

	quadtreeTrees = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadtree_trees",
		Help: "The number of live trees.",
	}, []string{kindLabel})

	quadtreeCollectionTrees = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadtree_collection_trees",
		Help: "The number of trees registered in a collection.",
	}, []string{collectionLabel})
)

func instrumentNodeUpdates(aggregate string, n int) {
	quadtreeNodeUpdates.
		With(prometheus.Labels{aggregateLabel: aggregate}).
		Add(float64(n))
}

func instrumentTreeCreated(k Kind) {
	quadtreeTrees.
		With(prometheus.Labels{kindLabel: k.String()}).
		Inc()
}

func instrumentTreeReleased(k Kind) {
	quadtreeTrees.
		With(prometheus.Labels{kindLabel: k.String()}).
		Dec()
}

func instrumentCollectionTrees(collection string, n int) {
	quadtreeCollectionTrees.
		With(prometheus.Labels{collectionLabel: collection}).
		Set(float64(n))
}
