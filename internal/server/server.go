// Package server runs the plain HTTP and SNI-terminated TLS listeners.
package server

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
)

type Config struct {
	HTTPAddrs []string
	TLSAddrs  []string
}

// Server owns one http.Server per listen address.
type Server struct {
	handler http.Handler
	config  Config
	sni     *SNIResolver
	logger  logging.Logger

	mu      sync.Mutex
	servers []*http.Server
	addrs   []net.Addr
	errs    chan error
	serving errgroup.Group
}

// New creates a server. sni may be nil when no TLS addresses are configured.
func New(handler http.Handler, config Config, sni *SNIResolver, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Component("server")
	}
	return &Server{
		handler: handler,
		config:  config,
		sni:     sni,
		logger:  logger,
		errs:    make(chan error, len(config.HTTPAddrs)+len(config.TLSAddrs)),
	}
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// A non-nil empty map keeps net/http from negotiating HTTP/2.
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
	}
}

// Start binds every listener before serving any, so an unbindable address
// fails startup as a whole.
func (s *Server) Start() error {
	if len(s.config.TLSAddrs) > 0 && s.sni == nil {
		return errors.ConfigError("TLS listeners require an SNI resolver")
	}

	type bound struct {
		ln  net.Listener
		tls bool
	}
	var listeners []bound
	closeAll := func() {
		for _, b := range listeners {
			b.ln.Close()
		}
	}

	for _, addr := range s.config.HTTPAddrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll()
			return errors.ConnectionError("failed to bind "+addr, err)
		}
		listeners = append(listeners, bound{ln: ln})
	}
	for _, addr := range s.config.TLSAddrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll()
			return errors.ConnectionError("failed to bind "+addr, err)
		}
		listeners = append(listeners, bound{ln: tls.NewListener(ln, s.sni.TLSConfig()), tls: true})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range listeners {
		srv := s.newHTTPServer()
		s.servers = append(s.servers, srv)
		s.addrs = append(s.addrs, b.ln.Addr())

		s.logger.Info("Listening",
			logging.String("addr", b.ln.Addr().String()),
			logging.Bool("tls", b.tls),
		)

		ln := b.ln
		s.serving.Go(func() error {
			err := srv.Serve(ln)
			if err == nil || stderrors.Is(err, http.ErrServerClosed) {
				return nil
			}
			s.logger.Error("Listener stopped", err, logging.String("addr", ln.Addr().String()))
			s.errs <- err
			return err
		})
	}
	return nil
}

// Addrs returns the bound addresses, plain listeners first.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]net.Addr(nil), s.addrs...)
}

// Errors delivers errors from listeners that stopped unexpectedly.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown stops every listener in parallel and waits for in-flight
// requests or ctx. Listener failures already reported on Errors are not
// returned again.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	servers := append([]*http.Server(nil), s.servers...)
	s.mu.Unlock()

	var g errgroup.Group
	for _, srv := range servers {
		g.Go(func() error { return srv.Shutdown(ctx) })
	}
	err := g.Wait()
	_ = s.serving.Wait()
	return err
}
