package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/certcheck/certcheck/internal/scan"
)

const job = "certcheck"

// Pusher ships one grouped snapshot per scan to a pushgateway.
type Pusher struct {
	collector *Collector
	pusher    *push.Pusher
}

// NewPusher targets a pushgateway base URL.
func NewPusher(url string) *Pusher {
	reg := prometheus.NewRegistry()
	return &Pusher{
		collector: NewCollector(reg),
		pusher:    push.New(url, job).Gatherer(reg),
	}
}

// Push replaces the certcheck job group on the gateway with gauges
// derived from the result.
func (p *Pusher) Push(ctx context.Context, result scan.Result, scanDuration time.Duration) error {
	p.collector.Update(result, scanDuration)
	return p.pusher.PushContext(ctx)
}
