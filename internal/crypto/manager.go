package crypto

import (
	"context"
	"crypto/tls"
	"strings"

	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
	"edge-gateway/internal/storage"
)

// ErrNoCertificate is returned when no keycert exists for a server name.
var ErrNoCertificate = errors.NotFoundError("certificate")

// Manager resolves server names to certificates. Both the stored keycerts
// and the built certificates are cached per server name.
type Manager struct {
	store    storage.CertStore
	keycerts *cache.Cache[*models.Keycert]
	built    *cache.Cache[*tls.Certificate]
	builder  *Builder
	logger   logging.Logger
}

func NewManager(store storage.CertStore, keycerts *cache.Cache[*models.Keycert], built *cache.Cache[*tls.Certificate], builder *Builder, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Component("crypto")
	}
	return &Manager{
		store:    store,
		keycerts: keycerts,
		built:    built,
		builder:  builder,
		logger:   logger,
	}
}

// GetKeycert returns the stored keycert for name.
func (m *Manager) GetKeycert(ctx context.Context, name string) (*models.Keycert, bool, error) {
	name = strings.ToLower(name)
	return m.keycerts.GetWith(ctx, name, func(ctx context.Context) (*models.Keycert, bool, error) {
		return m.store.GetKeycert(ctx, name)
	})
}

// GetCertificate returns the certificate for name, ErrNoCertificate when
// none is stored, a TLS error when the stored material is unusable, or the
// backend error.
func (m *Manager) GetCertificate(ctx context.Context, name string) (*tls.Certificate, error) {
	name = strings.ToLower(name)
	cert, found, err := m.built.GetWith(ctx, name, func(ctx context.Context) (*tls.Certificate, bool, error) {
		kc, found, err := m.GetKeycert(ctx, name)
		if err != nil || !found {
			return nil, false, err
		}
		cert, err := m.builder.Build(name, kc)
		if err != nil {
			return nil, false, err
		}
		return cert, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoCertificate
	}
	return cert, nil
}

// GetDefaultCertificate returns the fallback certificate.
func (m *Manager) GetDefaultCertificate(ctx context.Context) (*tls.Certificate, error) {
	return m.GetCertificate(ctx, models.DefaultCertificateName)
}

// Invalidate drops everything cached for name.
func (m *Manager) Invalidate(name string) {
	name = strings.ToLower(name)
	m.keycerts.Invalidate(name)
	m.built.Invalidate(name)
}
