// Package metrics publishes completed scans to a Prometheus pushgateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certcheck/certcheck/internal/inventory"
	"github.com/certcheck/certcheck/internal/scan"
)

// Collector translates a scan result into Prometheus gauge values.
type Collector struct {
	certNotAfter  *prometheus.GaugeVec
	daysRemaining *prometheus.GaugeVec
	findingsTotal *prometheus.GaugeVec
	scanDuration  prometheus.Gauge
}

// NewCollector creates and registers metrics on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		certNotAfter: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "certcheck",
			Name:      "cert_not_after_timestamp",
			Help:      "Unix timestamp of certificate notAfter.",
		}, []string{"source", "location"}),

		daysRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "certcheck",
			Name:      "cert_days_remaining",
			Help:      "Whole days until certificate expiry (negative if expired).",
		}, []string{"source", "location"}),

		findingsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "certcheck",
			Name:      "findings_total",
			Help:      "Number of findings by severity.",
		}, []string{"severity"}),

		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certcheck",
			Name:      "scan_duration_seconds",
			Help:      "Duration of the scan in seconds.",
		}),
	}

	reg.MustRegister(c.certNotAfter)
	reg.MustRegister(c.daysRemaining)
	reg.MustRegister(c.findingsTotal)
	reg.MustRegister(c.scanDuration)

	return c
}

// Update replaces all metric values from the given result. Every
// severity is always reported so dashboards see explicit zeroes.
func (c *Collector) Update(result scan.Result, scanDuration time.Duration) {
	c.certNotAfter.Reset()
	c.daysRemaining.Reset()
	c.findingsTotal.Reset()

	c.scanDuration.Set(scanDuration.Seconds())

	counts := map[inventory.Severity]int{
		inventory.SeverityOK:      0,
		inventory.SeverityWarning: 0,
		inventory.SeverityDanger:  0,
	}

	for i := range result.Findings {
		f := &result.Findings[i]
		counts[f.Severity]++

		labels := prometheus.Labels{
			"source":   f.Source,
			"location": f.Location,
		}
		c.certNotAfter.With(labels).Set(float64(f.NotAfter.Unix()))
		c.daysRemaining.With(labels).Set(float64(f.DaysRemaining))
	}

	for sev, count := range counts {
		c.findingsTotal.With(prometheus.Labels{"severity": string(sev)}).Set(float64(count))
	}
}
