package crypto

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"golang.org/x/crypto/ocsp"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
)

// Builder turns stored keycerts into tls.Certificates.
type Builder struct {
	encryptor *KeyEncryptor
	now       func() time.Time
	logger    logging.Logger
}

// NewBuilder creates a builder. encryptor may be nil when no keys are sealed.
func NewBuilder(encryptor *KeyEncryptor, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Component("crypto")
	}
	return &Builder{encryptor: encryptor, now: time.Now, logger: logger}
}

// Build parses the PEM chain and PKCS8 key of kc. An OCSP response is stapled
// only when it is good, matches the leaf and is still current.
func (b *Builder) Build(name string, kc *models.Keycert) (*tls.Certificate, error) {
	chain := decodeBlocks([]byte(kc.Cert), "CERTIFICATE")
	if len(chain) == 0 {
		return nil, errors.TLSError("no certificates in chain", nil).WithContext("server_name", name)
	}

	keyPEM := kc.Key
	if IsSealed(keyPEM) {
		if b.encryptor == nil {
			return nil, errors.TLSError("private key is sealed but no encryption key is configured", nil).
				WithContext("server_name", name)
		}
		opened, err := b.encryptor.Open(keyPEM)
		if err != nil {
			return nil, errors.TLSError("cannot unseal private key", err).WithContext("server_name", name)
		}
		keyPEM = opened
	}

	keys := decodeBlocks([]byte(keyPEM), "PRIVATE KEY")
	if len(keys) == 0 {
		return nil, errors.TLSError("no PKCS8 private key", nil).WithContext("server_name", name)
	}
	key, err := x509.ParsePKCS8PrivateKey(keys[0])
	if err != nil {
		return nil, errors.TLSError("invalid private key", err).WithContext("server_name", name)
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, errors.TLSError("invalid leaf certificate", err).WithContext("server_name", name)
	}
	if err := matchesLeaf(leaf, key); err != nil {
		return nil, errors.TLSError("private key does not match certificate", err).WithContext("server_name", name)
	}

	cert := &tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        leaf,
	}

	if len(kc.OCSP) > 0 {
		var issuer *x509.Certificate
		if len(chain) > 1 {
			issuer, _ = x509.ParseCertificate(chain[1])
		}
		if err := validStaple(kc.OCSP, leaf, issuer, b.now()); err != nil {
			b.logger.Warn("Dropping OCSP staple",
				logging.String("server_name", name),
				logging.Err(err),
			)
		} else {
			cert.OCSPStaple = kc.OCSP
		}
	}

	return cert, nil
}

func decodeBlocks(data []byte, blockType string) [][]byte {
	var out [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return out
		}
		if block.Type == blockType {
			out = append(out, block.Bytes)
		}
	}
}

func matchesLeaf(leaf *x509.Certificate, key crypto.PrivateKey) error {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return fmt.Errorf("key of type %T cannot sign", key)
	}
	pub, ok := leaf.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(signer.Public()) {
		return fmt.Errorf("public key mismatch")
	}
	return nil
}

func validStaple(raw []byte, leaf, issuer *x509.Certificate, now time.Time) error {
	resp, err := ocsp.ParseResponseForCert(raw, leaf, issuer)
	if err != nil {
		return err
	}
	if resp.Status != ocsp.Good {
		return fmt.Errorf("certificate status is %d", resp.Status)
	}
	if !resp.NextUpdate.IsZero() && now.After(resp.NextUpdate) {
		return fmt.Errorf("response expired at %s", resp.NextUpdate.Format(time.RFC3339))
	}
	return nil
}
