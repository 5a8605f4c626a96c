package extract

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"
)

// testCert generates a self-signed certificate expiring at notAfter.
func testCert(t *testing.T, cn string, notAfter time.Time) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notAfter.Add(-365 * 24 * time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

// certPEM encodes a certificate as a PEM string.
func certPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
}

func TestCertificates_SinglePEM(t *testing.T) {
	notAfter := time.Date(2027, 3, 14, 9, 26, 53, 0, time.UTC)
	cert := testCert(t, "single.example.com", notAfter)

	certs, err := Certificates(certPEM(cert))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(certs))
	}
	if !certs[0].NotAfter.Equal(notAfter) {
		t.Errorf("expected NotAfter %v, got %v", notAfter, certs[0].NotAfter)
	}
}

func TestCertificates_ConcatenatedChain(t *testing.T) {
	notAfter := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)
	first := testCert(t, "first.example.com", notAfter)
	second := testCert(t, "second.example.com", notAfter)

	certs, err := Certificates(certPEM(first) + certPEM(second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("expected 2 certificates, got %d", len(certs))
	}
	if certs[0].Subject.CommonName != "first.example.com" {
		t.Errorf("expected first certificate first, got %q", certs[0].Subject.CommonName)
	}
	if certs[1].Subject.CommonName != "second.example.com" {
		t.Errorf("expected second certificate second, got %q", certs[1].Subject.CommonName)
	}
}

func TestCertificates_LeadingWhitespace(t *testing.T) {
	cert := testCert(t, "padded.example.com", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))

	certs, err := Certificates("\n  " + certPEM(cert) + "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(certs))
	}
}

func TestCertificates_TruncatedPEM(t *testing.T) {
	pemText := certPEM(testCert(t, "truncated.example.com", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))

	certs, err := Certificates(pemText[:len(pemText)/2])
	if err == nil {
		t.Fatal("expected error for truncated PEM")
	}
	var malformed *MalformedCertificateError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedCertificateError, got %T: %v", err, err)
	}
	if len(certs) != 0 {
		t.Errorf("expected no certificates, got %d", len(certs))
	}
}

func TestCertificates_CorruptBlockAfterValid(t *testing.T) {
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	good := certPEM(testCert(t, "good.example.com", notAfter))
	bad := certPEM(testCert(t, "bad.example.com", notAfter))

	_, err := Certificates(good + bad[:len(bad)/2])
	if err == nil {
		t.Fatal("expected error for corrupt trailing block")
	}
	var malformed *MalformedCertificateError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedCertificateError, got %T: %v", err, err)
	}
}

func TestCertificates_CorruptBlockBeforeValid(t *testing.T) {
	// pem.Decode skips an undecodable block and lands on the next valid
	// one, so a bad leading block must not pass as a one-cert bundle.
	good := certPEM(testCert(t, "good.example.com", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
	bad := "-----BEGIN CERTIFICATE-----\n!!!!not-base64!!!!\n-----END CERTIFICATE-----\n"

	certs, err := Certificates(bad + good)
	if err == nil {
		t.Fatalf("expected error for corrupt leading block, got %d certificate(s)", len(certs))
	}
	var malformed *MalformedCertificateError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedCertificateError, got %T: %v", err, err)
	}
}

func TestCertificates_CorruptBlockBetweenValid(t *testing.T) {
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	first := certPEM(testCert(t, "first.example.com", notAfter))
	second := certPEM(testCert(t, "second.example.com", notAfter))
	bad := certPEM(testCert(t, "bad.example.com", notAfter))

	_, err := Certificates(first + bad[:len(bad)/2] + second)
	if err == nil {
		t.Fatal("expected error for corrupt block between valid blocks")
	}
	var malformed *MalformedCertificateError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedCertificateError, got %T: %v", err, err)
	}
}

func TestCertificates_NonDERPayload(t *testing.T) {
	// Intact armor around bytes that are not a certificate.
	junk := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("not a certificate")}))

	_, err := Certificates(junk)
	if err == nil {
		t.Fatal("expected error for non-DER payload")
	}
	var malformed *MalformedCertificateError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedCertificateError, got %T: %v", err, err)
	}
}

func TestCertificates_SkipsForeignBlocks(t *testing.T) {
	cert := testCert(t, "mixed.example.com", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	key := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte("fake")}))

	certs, err := Certificates(certPEM(cert) + key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(certs))
	}
}

func TestCertificates_BareBase64DER(t *testing.T) {
	notAfter := time.Date(2027, 6, 30, 12, 0, 0, 0, time.UTC)
	cert := testCert(t, "der.example.com", notAfter)

	b64 := base64.StdEncoding.EncodeToString(cert.Raw)
	if !strings.HasPrefix(b64, "MII") {
		t.Fatalf("test certificate does not encode with the expected prefix: %q", b64[:8])
	}

	certs, err := Certificates(b64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(certs))
	}
	if !certs[0].NotAfter.Equal(notAfter) {
		t.Errorf("expected NotAfter %v, got %v", notAfter, certs[0].NotAfter)
	}
}

func TestCertificates_WrappedBase64DER(t *testing.T) {
	cert := testCert(t, "wrapped.example.com", time.Date(2027, 6, 30, 12, 0, 0, 0, time.UTC))
	b64 := base64.StdEncoding.EncodeToString(cert.Raw)

	var wrapped strings.Builder
	for i := 0; i < len(b64); i += 64 {
		end := i + 64
		if end > len(b64) {
			end = len(b64)
		}
		wrapped.WriteString(b64[i:end])
		wrapped.WriteString("\n")
	}

	certs, err := Certificates(wrapped.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(certs) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(certs))
	}
}

func TestCertificates_FalsePositive(t *testing.T) {
	certs, err := Certificates("MII is what nintendo calls avatars")
	if err != nil {
		t.Fatalf("expected false positive to be dropped, got error: %v", err)
	}
	if len(certs) != 0 {
		t.Errorf("expected no certificates, got %d", len(certs))
	}
}

func TestCertificates_NonCandidates(t *testing.T) {
	values := []any{
		"zookeeper.example.com",
		"",
		916,
		1.5,
		true,
		nil,
	}
	for _, v := range values {
		certs, err := Certificates(v)
		if err != nil {
			t.Errorf("Certificates(%v): unexpected error: %v", v, err)
		}
		if len(certs) != 0 {
			t.Errorf("Certificates(%v): expected no certificates, got %d", v, len(certs))
		}
	}
}
