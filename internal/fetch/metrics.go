package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK           = "ok"
	resultNotModified  = "not_modified"
	resultHTTPError    = "http_error"
	resultNetworkError = "network_error"
	resultParseError   = "parse_error"
	resultStoreError   = "store_error"
)

// fetchResults counts reconcile outcomes by result class.
var fetchResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedcache_fetch_results_total",
	Help: "Fetch-and-reconcile outcomes by result.",
}, []string{"result"})
