// Package inventory defines the certificate record contract shared by all
// scan sources and the expiry classification derived from it.
package inventory

import "time"

// Severity classifies how urgent an expiring certificate is. The string
// values double as Slack attachment colors.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Record is a single certificate observation. It is the one contract every
// source honors, whether the certificate came out of a deployment manifest
// or a cloud API.
type Record struct {
	// Source labels where the certificate lives: a deployment name, or a
	// fixed label for cloud inventories.
	Source string `json:"source"`

	// Location narrows the source down to the certificate itself: the dotted
	// key-path inside a manifest, or the cloud certificate name.
	Location string `json:"location"`

	// NotAfter is the certificate expiration instant in UTC.
	NotAfter time.Time `json:"notAfter"`
}

// Finding is a classified record. Severity is derived at scan time and never
// persisted; every run recomputes it from the record and the current clock.
type Finding struct {
	Record
	DaysRemaining int      `json:"daysRemaining"`
	Severity      Severity `json:"severity"`
}

// DaysRemaining returns the whole days between now and notAfter, flooring
// toward negative infinity: a certificate expiring in 23 hours has 0 days
// remaining, one that expired 30 minutes ago has -1.
func DaysRemaining(notAfter, now time.Time) int {
	d := notAfter.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// Classify buckets a days-remaining value against the two thresholds. The
// danger check runs first and always wins when satisfied, even if the
// thresholds are misconfigured with errorDays > warnDays.
func Classify(days, warnDays, errorDays int) Severity {
	switch {
	case days <= errorDays:
		return SeverityDanger
	case days <= warnDays:
		return SeverityWarning
	default:
		return SeverityOK
	}
}
