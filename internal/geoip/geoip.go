// Package geoip resolves client IPs to coarse locations from a MaxMind
// database that is reloaded on a cron schedule.
package geoip

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"github.com/robfig/cron/v3"

	"edge-gateway/internal/common/logging"
)

// Record is the location of one IP address.
type Record struct {
	Continent string
	Country   string
	City      string
	Latitude  float64
	Longitude float64
}

// GeoReader abstracts the database reader so tests need no mmdb file.
type GeoReader interface {
	Lookup(ip net.IP) (Record, bool, error)
	Close() error
}

// OpenFunc opens a database file.
type OpenFunc func(path string) (GeoReader, error)

// cityRecord mirrors the GeoLite2/GeoIP2 City layout.
type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Continent struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"continent"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

type mmdbReader struct {
	db *maxminddb.Reader
}

// OpenMaxMind is the production OpenFunc.
func OpenMaxMind(path string) (GeoReader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &mmdbReader{db: db}, nil
}

func (r *mmdbReader) Lookup(ip net.IP) (Record, bool, error) {
	var rec cityRecord
	_, found, err := r.db.LookupNetwork(ip, &rec)
	if err != nil || !found {
		return Record{}, false, err
	}
	return Record{
		Continent: rec.Continent.Code,
		Country:   rec.Country.ISOCode,
		City:      rec.City.Names["en"],
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}, true, nil
}

func (r *mmdbReader) Close() error {
	return r.db.Close()
}

// ServiceConfig configures the GeoIP service.
type ServiceConfig struct {
	// Path of the mmdb file. Empty disables lookups.
	Path string
	// ReloadSchedule is a cron expression, default "@daily".
	ReloadSchedule string
	// OpenDB defaults to OpenMaxMind.
	OpenDB OpenFunc
	Logger logging.Logger
}

// Service provides GeoIP lookup with hot reloading.
type Service struct {
	mu     sync.RWMutex
	reader GeoReader

	path   string
	openDB OpenFunc
	cron   *cron.Cron
	logger logging.Logger
}

// NewService validates the schedule; nothing is loaded until Start.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.ReloadSchedule == "" {
		cfg.ReloadSchedule = "@daily"
	}
	if cfg.OpenDB == nil {
		cfg.OpenDB = OpenMaxMind
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Component("geoip")
	}

	s := &Service{
		path:   cfg.Path,
		openDB: cfg.OpenDB,
		cron:   cron.New(),
		logger: cfg.Logger,
	}
	if s.path == "" {
		return s, nil
	}

	if _, err := s.cron.AddFunc(cfg.ReloadSchedule, func() {
		if err := s.Reload(); err != nil {
			s.logger.Error("Scheduled GeoIP reload failed", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("geoip: invalid reload schedule %q: %w", cfg.ReloadSchedule, err)
	}
	return s, nil
}

// Enabled reports whether a database path is configured.
func (s *Service) Enabled() bool {
	return s.path != ""
}

// Start loads the database and starts the reload scheduler. A database that
// fails to load leaves lookups empty until the next successful reload.
func (s *Service) Start() {
	if !s.Enabled() {
		s.logger.Info("GeoIP disabled, no database configured")
		return
	}
	if err := s.Reload(); err != nil {
		s.logger.Error("Failed to load GeoIP database", err, logging.String("path", s.path))
	}
	s.cron.Start()
}

// Stop stops the scheduler and closes the reader.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	r := s.reader
	s.reader = nil
	s.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

// Reload reopens the database file and swaps it in.
func (s *Service) Reload() error {
	next, err := s.openDB(s.path)
	if err != nil {
		return fmt.Errorf("geoip: open %s: %w", s.path, err)
	}
	s.mu.Lock()
	old := s.reader
	s.reader = next
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	s.logger.Info("GeoIP database loaded", logging.String("path", s.path))
	return nil
}

// Lookup returns the location of ip. Unparsable or unknown addresses are not found.
func (s *Service) Lookup(ip string) (Record, bool) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Record{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return Record{}, false
	}
	rec, found, err := s.reader.Lookup(addr)
	if err != nil {
		s.logger.Debug("GeoIP lookup failed", logging.String("ip", ip), logging.Err(err))
		return Record{}, false
	}
	return rec, found
}
