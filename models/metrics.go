package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	editKindLabel = "kind"

	editKindHeight  = "height"
	editKindTexture = "texture"
	editKindUnits   = "units"
)

var (
	mapEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "map_edits_total",
		Help: "The number of edits forwarded to the quadtrees.",
	}, []string{editKindLabel})

	canvasUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_units",
		Help: "The number of units on the canvas.",
	})

	worldSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_subscribers",
		Help: "The number of change subscribers.",
	})
)

func instrumentMapEdit(kind string) {
	mapEdits.
		With(prometheus.Labels{editKindLabel: kind}).
		Inc()
}

func instrumentCanvasUnits(n int) {
	canvasUnits.Set(float64(n))
}

func instrumentSubscribers(n int) {
	worldSubscribers.Set(float64(n))
}
