package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	operationLabel = "operation"
	resultLabel    = "result"

	voxelAddOperation    = "add"
	voxelRemoveOperation = "remove"
)

var (
	regionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "region_count",
		Help: "The number of regions.",
	})

	regionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "region_count_total",
		Help: "The total number of created regions.",
	})

	voxelCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxel_count",
		Help: "The number of voxels stored in all the regions.",
	})

	voxelOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxel_operations",
		Help: "The number of voxel mutations by outcome.",
	}, []string{
		operationLabel,
		resultLabel,
	})
)

func instrumentIncreaseRegionGauge() {
	regionCount.Inc()
}

func instrumentDecreaseRegionGauge() {
	regionCount.Dec()
}

func instrumentCountRegion() {
	regionCountTotal.Inc()
}

func instrumentIncreaseVoxelGauge() {
	voxelCount.Inc()
}

func instrumentDecreaseVoxelGauge() {
	voxelCount.Dec()
}

func instrumentSubVoxelGauge(n int) {
	voxelCount.Sub(float64(n))
}

func instrumentVoxelOperation(operation, result string) {
	voxelOperations.
		With(prometheus.Labels{
			operationLabel: operation,
			resultLabel:    result,
		}).
		Inc()
}
