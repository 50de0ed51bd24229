package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"edge-gateway/internal/models"
)

// CertAuthority signs leaf certificates and OCSP responses for tests.
type CertAuthority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
	PEM  string
}

// Leaf is a signed leaf certificate with its PKCS8 key.
type Leaf struct {
	Cert    *x509.Certificate
	CertPEM string
	KeyPEM  string
}

var serial atomic.Int64

func nextSerial() *big.Int {
	return big.NewInt(100 + serial.Add(1))
}

// NewCertAuthority creates a self-signed CA.
func NewCertAuthority(t testing.TB) *CertAuthority {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: "edge-gateway test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA: %v", err)
	}
	return &CertAuthority{Cert: cert, Key: key, PEM: encodePEM("CERTIFICATE", der)}
}

// Issue signs a leaf certificate for the given DNS names.
func (ca *CertAuthority) Issue(t testing.TB, names ...string) *Leaf {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	cn := "leaf"
	if len(names) > 0 {
		cn = names[0]
	}
	tmpl := &x509.Certificate{
		SerialNumber: nextSerial(),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     names,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse leaf: %v", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal leaf key: %v", err)
	}
	return &Leaf{
		Cert:    cert,
		CertPEM: encodePEM("CERTIFICATE", der),
		KeyPEM:  encodePEM("PRIVATE KEY", pkcs8),
	}
}

// Keycert returns the leaf as stored material, chain leaf first.
func (ca *CertAuthority) Keycert(leaf *Leaf) *models.Keycert {
	return &models.Keycert{Cert: leaf.CertPEM + ca.PEM, Key: leaf.KeyPEM}
}

// OCSPResponse signs a response for leaf with the given status and next update.
func (ca *CertAuthority) OCSPResponse(t testing.TB, leaf *Leaf, status int, nextUpdate time.Time) []byte {
	t.Helper()
	raw, err := ocsp.CreateResponse(ca.Cert, ca.Cert, ocsp.Response{
		Status:       status,
		SerialNumber: leaf.Cert.SerialNumber,
		ThisUpdate:   time.Now().Add(-time.Minute),
		NextUpdate:   nextUpdate,
	}, ca.Key)
	if err != nil {
		t.Fatalf("create OCSP response: %v", err)
	}
	return raw
}

func encodePEM(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}
