package models

// DefaultCertificateName is the store key of the fallback certificate.
const DefaultCertificateName = "default"

// Keycert is the certificate material stored per server name.
type Keycert struct {
	// Cert is the PEM encoded chain, leaf first.
	Cert string `json:"cert"`
	// Key is a PEM encoded PKCS8 private key, optionally sealed with the
	// gateway encryption key (see crypto.KeyEncryptor).
	Key string `json:"key"`
	// OCSP is a DER encoded OCSP response to staple, if any.
	OCSP []byte `json:"ocsp,omitempty"`
}
