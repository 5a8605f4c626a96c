// Package scan runs certificate sources in order and classifies what
// they return.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/certcheck/certcheck/internal/inventory"
)

// Source enumerates certificates held by one external inventory.
type Source interface {
	// Name labels the source in logs and errors.
	Name() string
	// Certificates returns every certificate the source knows about.
	Certificates(ctx context.Context) ([]inventory.Record, error)
}

// Scanner queries sources one at a time and classifies their records
// against the expiry thresholds.
type Scanner struct {
	nowFn     func() time.Time
	tracer    trace.Tracer
	sources   []Source
	warnDays  int
	errorDays int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTracer attaches a tracer; each source scan becomes a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scanner) { s.tracer = tracer }
}

// NewScanner creates a scanner with the given thresholds.
func NewScanner(sources []Source, warnDays, errorDays int, opts ...Option) *Scanner {
	s := &Scanner{
		sources:   sources,
		warnDays:  warnDays,
		errorDays: errorDays,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is one full pass over every source.
type Result struct {
	At       time.Time           `json:"scannedAt"`
	Findings []inventory.Finding `json:"findings"`
}

// Alerts returns the findings that warrant a notification.
func (r Result) Alerts() []inventory.Finding {
	var alerts []inventory.Finding
	for _, f := range r.Findings {
		if f.Severity != inventory.SeverityOK {
			alerts = append(alerts, f)
		}
	}
	return alerts
}

// Run queries every source sequentially. Any source failure aborts the
// run: the tool is a scheduled batch check, and a half-finished scan
// provides no guarantee, so partial results are never returned.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	now := s.nowFn().UTC()
	result := Result{At: now}

	for _, src := range s.sources {
		records, err := s.scanSource(ctx, src)
		if err != nil {
			return Result{}, fmt.Errorf("scanning %s: %w", src.Name(), err)
		}
		slog.Info("source scanned", "source", src.Name(), "certificates", len(records))

		for _, rec := range records {
			days := inventory.DaysRemaining(rec.NotAfter, now)
			result.Findings = append(result.Findings, inventory.Finding{
				Record:        rec,
				DaysRemaining: days,
				Severity:      inventory.Classify(days, s.warnDays, s.errorDays),
			})
		}
	}

	return result, nil
}

func (s *Scanner) scanSource(ctx context.Context, src Source) ([]inventory.Record, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "scan."+src.Name())
		defer span.End()
	}
	return src.Certificates(ctx)
}
