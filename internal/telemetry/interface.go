package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector counts sensor transitions. It satisfies sensor.Counters.
type Collector interface {
	Transition(direction, outcome string)
	Clamp(kind string)
	GuardSkip(reason string)
	BusRetry(op string)

	Gatherer() prometheus.Gatherer
	Handler() http.Handler
	Serve(ctx context.Context) error
	Close() error
}
