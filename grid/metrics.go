package grid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	insertCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_grid_cell_inserts",
		Help: "The number of cell entries rendered into the grid.",
	})

	removeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_grid_cell_removes",
		Help: "The number of cell entries removed from the grid.",
	})

	raytraceCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_grid_raytraces",
		Help: "The number of ray queries walked through the grid.",
	})
)
