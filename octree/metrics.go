package octree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	octreeSubdivisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_subdivisions_total",
		Help: "The number of octree nodes split into octants.",
	})

	octreeMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octree_merges_total",
		Help: "The number of octree nodes merged back into a leaf.",
	})
)

func instrumentSubdivide() {
	octreeSubdivisions.Inc()
}

func instrumentMerge() {
	octreeMerges.Inc()
}
