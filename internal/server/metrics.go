package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subiquity_model_mutations_total",
			Help: "Total number of storage model mutations by operation and result.",
		},
		[]string{"op", "result"},
	)
	modelDevices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subiquity_model_devices",
			Help: "Current number of devices in the storage model.",
		},
	)
)

func init() {
	prometheus.MustRegister(mutationsTotal)
	prometheus.MustRegister(modelDevices)
}

func observeMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutationsTotal.WithLabelValues(op, result).Inc()
}
