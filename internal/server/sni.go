package server

import (
	"context"
	"crypto/tls"
	"strings"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
)

// CertificateSource resolves certificates by server name.
type CertificateSource interface {
	GetCertificate(ctx context.Context, name string) (*tls.Certificate, error)
	GetDefaultCertificate(ctx context.Context) (*tls.Certificate, error)
}

// SNIResolver picks the certificate for each TLS handshake from the
// ClientHello server name.
type SNIResolver struct {
	certs  CertificateSource
	logger logging.Logger
}

func NewSNIResolver(certs CertificateSource, logger logging.Logger) *SNIResolver {
	if logger == nil {
		logger = logging.Component("sni")
	}
	return &SNIResolver{certs: certs, logger: logger}
}

// Resolve returns the certificate for serverName. Missing names, unknown
// names and lookup failures fall back to the default certificate; stored
// material that cannot be turned into a certificate fails the handshake.
func (s *SNIResolver) Resolve(ctx context.Context, serverName string) (*tls.Certificate, error) {
	name := strings.ToLower(strings.TrimSuffix(serverName, "."))
	if name == "" {
		s.logger.Debug("No server name in ClientHello, using default certificate")
		return s.certs.GetDefaultCertificate(ctx)
	}

	cert, err := s.certs.GetCertificate(ctx, name)
	switch {
	case err == nil:
		return cert, nil
	case errors.IsType(err, errors.ErrTypeTLS):
		s.logger.Error("Unusable certificate", err, logging.String("server_name", name))
		return nil, err
	case errors.IsType(err, errors.ErrTypeNotFound):
		s.logger.Debug("No certificate for server name, using default", logging.String("server_name", name))
	default:
		s.logger.Error("Certificate lookup failed, using default", err, logging.String("server_name", name))
	}
	return s.certs.GetDefaultCertificate(ctx)
}

// GetConfigForClient plugs Resolve into crypto/tls. HTTP/2 is not offered.
func (s *SNIResolver) GetConfigForClient(hello *tls.ClientHelloInfo) (*tls.Config, error) {
	cert, err := s.Resolve(hello.Context(), hello.ServerName)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		NextProtos:   []string{"http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// TLSConfig is the listener config; every handshake is answered by
// GetConfigForClient.
func (s *SNIResolver) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{"http/1.1"},
		GetConfigForClient: s.GetConfigForClient,
	}
}
