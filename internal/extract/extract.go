// Package extract scans manifest values for embedded X.509 certificates.
package extract

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// pemHeader marks PEM-armored certificate material.
const pemHeader = "-----BEGIN CERTIFICATE-----"

// derPrefix is the base64 lead-in of a DER-encoded X.509 SEQUENCE.
const derPrefix = "MII"

// MalformedCertificateError reports a value that carries the PEM
// certificate header but cannot be decoded. Values like this indicate a
// real problem in the manifest and are never skipped.
type MalformedCertificateError struct {
	Err error
}

func (e *MalformedCertificateError) Error() string {
	return fmt.Sprintf("malformed certificate: %v", e.Err)
}

func (e *MalformedCertificateError) Unwrap() error { return e.Err }

// Certificates scans a scalar manifest value for certificate material.
// Non-string values yield nothing. A PEM-headed string must decode
// cleanly or the call fails with a MalformedCertificateError; a string
// that merely resembles bare base64 DER is decoded best-effort and
// dropped on failure, since plenty of manifest values start with "MII"
// without being certificates.
func Certificates(value any) ([]*x509.Certificate, error) {
	s, ok := value.(string)
	if !ok {
		return nil, nil
	}
	s = strings.TrimSpace(s)

	var certs []*x509.Certificate

	if strings.HasPrefix(s, pemHeader) {
		parsed, err := parsePEMBundle([]byte(s))
		if err != nil {
			return nil, &MalformedCertificateError{Err: err}
		}
		certs = append(certs, parsed...)
	}

	if strings.HasPrefix(s, derPrefix) {
		if cert, ok := parseBase64DER(s); ok {
			certs = append(certs, cert)
		}
	}

	return certs, nil
}

// parsePEMBundle decodes every CERTIFICATE PEM block in data. A field may
// hold a concatenated chain, so all blocks are parsed; blocks of other
// types are skipped. pem.Decode scans past material it cannot decode, so
// the decoded count is checked against the number of certificate headers
// in the input; a shortfall means a truncated or corrupt block, wherever
// it sits in the bundle.
func parsePEMBundle(data []byte) ([]*x509.Certificate, error) {
	want := strings.Count(string(data), pemHeader)
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate at position %d: %w", len(certs), err)
		}
		certs = append(certs, cert)
	}
	if len(certs) != want {
		return nil, fmt.Errorf("decoded %d of %d certificate blocks", len(certs), want)
	}
	return certs, nil
}

// parseBase64DER attempts to decode a bare base64 DER certificate. The
// boolean result distinguishes a real certificate from a value that only
// resembles one. Folded manifest scalars carry embedded whitespace, so
// all whitespace is dropped before decoding.
func parseBase64DER(s string) (*x509.Certificate, bool) {
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, false
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, false
	}
	return cert, true
}
