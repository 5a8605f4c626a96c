package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/certcheck/certcheck/internal/inventory"
	"github.com/certcheck/certcheck/internal/scan"
)

// envelope is the machine-readable scan summary. Alerts repeats the
// findings that would page someone, so consumers need not re-derive
// the severity cut.
type envelope struct {
	ScannedAt time.Time           `json:"scannedAt"`
	Findings  []inventory.Finding `json:"findings"`
	Alerts    []inventory.Finding `json:"alerts"`
}

// WriteJSON writes the scan result in findings order.
func WriteJSON(w io.Writer, result scan.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{
		ScannedAt: result.At,
		Findings:  result.Findings,
		Alerts:    result.Alerts(),
	})
}
