package profile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Schema adaptations should be rare outside a deploy window; a rising
// rate means clients and database have drifted apart.
var tfSchemaRetries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tapfolio_schema_retries_total",
		Help: "Profile reads/writes retried after an unknown-column error.",
	},
	[]string{"op"},
)
