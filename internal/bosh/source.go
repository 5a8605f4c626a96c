package bosh

import (
	"context"
	"fmt"

	"github.com/certcheck/certcheck/internal/extract"
	"github.com/certcheck/certcheck/internal/inventory"
	"github.com/certcheck/certcheck/internal/manifest"
)

// Source scans every deployment manifest on a director for embedded
// certificates.
type Source struct {
	director *Director
}

// NewSource creates a manifest-scanning source backed by director.
func NewSource(director *Director) *Source {
	return &Source{director: director}
}

// Name returns the source label.
func (s *Source) Name() string { return "bosh" }

// Certificates fetches every deployment manifest, flattens it, and
// extracts the certificates embedded in its values. Records carry the
// deployment name as source and the dotted property path as location.
func (s *Source) Certificates(ctx context.Context) ([]inventory.Record, error) {
	deployments, err := s.director.Deployments(ctx)
	if err != nil {
		return nil, err
	}

	var records []inventory.Record
	for _, dep := range deployments {
		doc, err := s.director.Manifest(ctx, dep.Name)
		if err != nil {
			return nil, err
		}

		for _, entry := range manifest.Flatten(doc) {
			certs, err := extract.Certificates(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("deployment %s property %s: %w", dep.Name, entry.Location(), err)
			}
			for _, cert := range certs {
				records = append(records, inventory.Record{
					Source:   dep.Name,
					Location: entry.Location(),
					NotAfter: cert.NotAfter.UTC(),
				})
			}
		}
	}
	return records, nil
}
